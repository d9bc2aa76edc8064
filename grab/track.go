package grab

import (
	"strings"

	"github.com/samber/lo"
)

// TrackDescriptor is what the search layer hands over for one catalog entry.
// SourceID is the catalog's identifier for the recording and is frequently
// invalid or blocked for the requesting address, which is exactly why the
// candidate chain exists.
type TrackDescriptor struct {
	Title        string
	Artist       string
	SourceID     string
	ThumbnailURL string
}

type Artist struct {
	Name string `json:"name"`
}

func JoinArtists(artists []Artist) string {
	names := lo.FilterMap(artists, func(a Artist, _ int) (string, bool) { return a.Name, a.Name != "" })
	return strings.Join(names, ", ")
}
