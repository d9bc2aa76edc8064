package grab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/tgym/grab"
)

func TestSelectExpression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		variants []grab.StreamVariant
		want     string
	}{
		{
			name:     "empty_set_defaults_to_best_audio",
			variants: nil,
			want:     "bestaudio/best",
		},
		{
			name: "m4a_wins_regardless_of_codecs",
			variants: []grab.StreamVariant{
				{Container: "webm", AudioCodec: "opus"},
				{Container: "m4a", AudioCodec: ""},
			},
			want: "bestaudio[ext=m4a]/bestaudio/best",
		},
		{
			name: "webm_when_no_m4a",
			variants: []grab.StreamVariant{
				{Container: "webm", AudioCodec: "opus"},
			},
			want: "bestaudio[ext=webm]/bestaudio/best",
		},
		{
			name: "opus_codec_before_aac",
			variants: []grab.StreamVariant{
				{Container: "mkv", AudioCodec: "aac"},
				{Container: "ogg", AudioCodec: "opus"},
			},
			want: "bestaudio[acodec=opus]/bestaudio/best",
		},
		{
			name: "aac_codec",
			variants: []grab.StreamVariant{
				{Container: "mkv", AudioCodec: "aac", HasVideo: true},
			},
			want: "bestaudio[acodec=aac]/bestaudio/best",
		},
		{
			name: "mp3_codec",
			variants: []grab.StreamVariant{
				{Container: "avi", AudioCodec: "mp3"},
			},
			want: "bestaudio[acodec=mp3]/bestaudio/best",
		},
		{
			name: "unknown_everything_defaults_to_best_audio",
			variants: []grab.StreamVariant{
				{Container: "mkv", AudioCodec: "vorbis"},
			},
			want: "bestaudio/best",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.want, grab.SelectExpression(test.variants))
		})
	}
}

func TestFallbackSelectors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"bestaudio[ext=m4a]/bestaudio/best",
		"bestaudio[ext=webm]/bestaudio/best",
		"bestaudio/best",
		"best",
	}, grab.FallbackSelectors)
}

func TestJoinArtists(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A, B", grab.JoinArtists([]grab.Artist{{Name: "A"}, {Name: ""}, {Name: "B"}}))
	assert.Equal(t, "", grab.JoinArtists(nil))
}
