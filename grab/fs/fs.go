// Package fs owns artifact naming and on-disk bookkeeping for download runs.
// Every intermediate file of a run embeds the run's source identifier in its
// name so concurrent runs sharing the directory never touch each other's
// files, and so a cleanup pass can find leftovers by substring scan.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/tgym/errutil"
)

const (
	// ArtifactExt is the container every fetched stream is transcoded into.
	ArtifactExt = "mp3"

	maxTitleLen = 40
)

var (
	unsafeTitleChars = regexp.MustCompile(`[^A-Za-z0-9 _-]`)
	repeatedSpaces   = regexp.MustCompile(` +`)
)

// SanitizeTitle reduces a track title to the filename-safe charset, collapses
// whitespace, and truncates to a fixed length.
func SanitizeTitle(title string) string {
	out := unsafeTitleChars.ReplaceAllString(title, "_")
	out = repeatedSpaces.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	if len(out) > maxTitleLen {
		out = strings.TrimSpace(out[:maxTitleLen])
	}
	return out
}

type DownloadDir string

func From(d string) DownloadDir {
	return DownloadDir(d)
}

func (dir DownloadDir) path() string {
	return string(dir)
}

func (dir DownloadDir) Create() error {
	if err := os.MkdirAll(dir.path(), 0o755); nil != err {
		flawP := flaw.P{"dir": dir.path(), "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to create download directory: %v", err)).Append(flawP)
	}
	return nil
}

// Track binds a (title, source id) pair to its filesystem locations.
func (dir DownloadDir) Track(title, id string) Track {
	base := SanitizeTitle(title) + "_" + id
	return Track{
		SourceID:       id,
		ArtifactPath:   filepath.Join(dir.path(), base+"."+ArtifactExt),
		OutputTemplate: filepath.Join(dir.path(), base+".%(ext)s"),
		dir:            dir,
	}
}

type Track struct {
	SourceID       string
	ArtifactPath   string
	OutputTemplate string
	dir            DownloadDir
}

// Exists reports whether the expected artifact is on disk and non-empty.
func (t Track) Exists() bool {
	info, err := os.Stat(t.ArtifactPath)
	return nil == err && info.Mode().IsRegular() && info.Size() > 0
}

// FindArtifact scans the directory for any non-empty audio file whose name
// contains the given source identifier. The fetch primitive's output naming
// is not fully predictable when the locator was a search form, so the
// expected-path check falls back to this scan.
func (dir DownloadDir) FindArtifact(id string) (string, bool, error) {
	entries, err := os.ReadDir(dir.path())
	if nil != err {
		flawP := flaw.P{"dir": dir.path(), "err_debug_tree": errutil.Tree(err).FlawP()}
		return "", false, flaw.From(fmt.Errorf("failed to read download directory: %v", err)).Append(flawP)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, id) || !strings.HasSuffix(name, "."+ArtifactExt) {
			continue
		}
		info, err := entry.Info()
		if nil != err || info.Size() == 0 {
			continue
		}
		return filepath.Join(dir.path(), name), true, nil
	}
	return "", false, nil
}

// CleanupRun removes every file whose name contains any of the given source
// identifiers, except keep. Pass keep as empty string to remove all of them.
func (dir DownloadDir) CleanupRun(ids []string, keep string) error {
	entries, err := os.ReadDir(dir.path())
	if nil != err {
		flawP := flaw.P{"dir": dir.path(), "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to read download directory: %v", err)).Append(flawP)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		p := filepath.Join(dir.path(), name)
		if p == keep || !containsAny(name, ids) {
			continue
		}
		if err := os.Remove(p); nil != err && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %q: %v", p, err))
		}
	}
	if len(errs) > 0 {
		return flaw.From(fmt.Errorf("failed to clean up run files: %v", errors.Join(errs...)))
	}
	return nil
}

func containsAny(name string, ids []string) bool {
	for _, id := range ids {
		if id != "" && strings.Contains(name, id) {
			return true
		}
	}
	return false
}
