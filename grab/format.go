package grab

import (
	"fmt"

	"github.com/samber/lo"
)

// StreamVariant describes one fetchable stream of a resolved locator.
type StreamVariant struct {
	Container  string `json:"container"`
	AudioCodec string `json:"audio_codec"`
	HasVideo   bool   `json:"has_video"`
}

// SelectorBestAudio is the fetch primitive's default best-audio selector.
const SelectorBestAudio = "bestaudio/best"

func containerSelector(container string) string {
	return fmt.Sprintf("bestaudio[ext=%s]/%s", container, SelectorBestAudio)
}

func codecSelector(codec string) string {
	return fmt.Sprintf("bestaudio[acodec=%s]/%s", codec, SelectorBestAudio)
}

// FallbackSelectors is the fixed secondary chain tried against an already
// resolved locator when the primary selection fails at fetch time.
var FallbackSelectors = []string{
	containerSelector("m4a"),
	containerSelector("webm"),
	SelectorBestAudio,
	"best",
}

// preferredCodecs are ordered by downstream transcode reliability, not by
// bitrate.
var preferredCodecs = []string{"opus", "aac", "mp3"}

// SelectExpression picks one selection expression for the given variant set.
// It always returns an expression with a best-audio fallback tail so the
// fetch primitive can itself fall back among matching variants.
func SelectExpression(variants []StreamVariant) string {
	if len(variants) == 0 {
		return SelectorBestAudio
	}

	hasContainer := func(container string) bool {
		return lo.SomeBy(variants, func(v StreamVariant) bool { return v.Container == container })
	}

	switch {
	case hasContainer("m4a"):
		return containerSelector("m4a")
	case hasContainer("webm"):
		return containerSelector("webm")
	}

	for _, codec := range preferredCodecs {
		if lo.SomeBy(variants, func(v StreamVariant) bool { return v.AudioCodec == codec }) {
			return codecSelector(codec)
		}
	}
	return SelectorBestAudio
}
