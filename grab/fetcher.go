package grab

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/xeptore/tgym/config"
	"github.com/xeptore/tgym/grab/fs"
)

// Primitive is the external resolve+fetch+transcode engine the orchestrator
// drives with different locators and options. It must understand direct-by-id
// locators, search-form locators, and all AuthMode values.
type Primitive interface {
	// Probe resolves a locator without transferring audio bytes. For a
	// search-form locator the primitive searches its catalog and resolves to
	// exactly the first hit.
	Probe(ctx context.Context, locator string, auth AuthMode) (*ResolvedSource, error)
	// Fetch downloads the selected stream and transcodes it to the target
	// audio container under outputTemplate.
	Fetch(ctx context.Context, locator, selector string, auth AuthMode, outputTemplate string) error
}

// Fetcher executes single candidate attempts against the fetch primitive.
// It fails closed: every primitive-level fault is downgraded to an Unresolved
// outcome and never crosses this boundary as an error.
type Fetcher struct {
	prim   Primitive
	dir    fs.DownloadDir
	logger zerolog.Logger
}

func NewFetcher(prim Primitive, dir fs.DownloadDir, logger zerolog.Logger) *Fetcher {
	return &Fetcher{prim: prim, dir: dir, logger: logger}
}

func (f *Fetcher) Probe(ctx context.Context, cand FetchCandidate) (*ResolvedSource, *Unresolved) {
	probeCtx, cancel := context.WithTimeout(ctx, config.ProbeTimeout)
	defer cancel()

	src, err := f.prim.Probe(probeCtx, cand.Locator, cand.Auth)
	if nil != err {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, &Unresolved{Reason: "timeout"}
		}
		return nil, &Unresolved{Reason: err.Error()}
	}
	if nil == src {
		return nil, &Unresolved{Reason: "probe resolved to no source"}
	}
	if src.ID == "" {
		return nil, &Unresolved{Reason: "probe resolved to an empty source identifier"}
	}
	return src, nil
}

// Fetch retrieves the resolved source to disk with the given selection
// expression. The artifact is named after the run's track title and the
// resolved source id. When the expected output path is missing it falls back
// to a directory scan scoped by the resolved id, because the primitive's
// naming is not fully predictable for search-form resolutions.
func (f *Fetcher) Fetch(ctx context.Context, src *ResolvedSource, selector string, auth AuthMode, title string) (string, *Unresolved) {
	track := f.dir.Track(title, src.ID)

	fetchCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	if err := f.prim.Fetch(fetchCtx, src.Locator, selector, auth, track.OutputTemplate); nil != err {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return "", &Unresolved{Reason: "timeout"}
		}
		return "", &Unresolved{Reason: err.Error()}
	}

	if track.Exists() {
		return track.ArtifactPath, nil
	}

	found, ok, err := f.dir.FindArtifact(src.ID)
	if nil != err {
		f.logger.Error().Str("source_id", src.ID).Err(err).Msg("Artifact scan failed")
		return "", &Unresolved{Reason: "artifact scan failed: " + err.Error()}
	}
	if !ok {
		return "", &Unresolved{Reason: "fetch reported success but no artifact matched the resolved source identifier"}
	}
	return found, nil
}
