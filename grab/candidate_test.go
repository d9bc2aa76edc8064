package grab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/tgym/grab"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	track := grab.TrackDescriptor{Title: "Song A", Artist: "Artist B", SourceID: "abc123"}

	t.Run("tier_order_with_mirrors", func(t *testing.T) {
		t.Parallel()

		gen := grab.Generator{Mirrors: []string{"https://m1.example", "https://m2.example"}}
		cands := gen.Generate(track)
		require.Len(t, cands, 5)

		assert.Equal(t, "https://www.youtube.com/watch?v=abc123", cands[0].Locator)
		assert.Equal(t, grab.AuthNone, cands[0].Auth)
		assert.False(t, cands[0].AlternateNetworkPath)

		assert.Equal(t, "https://music.youtube.com/watch?v=abc123", cands[1].Locator)

		mirrorLocators := []string{cands[2].Locator, cands[3].Locator}
		assert.ElementsMatch(t, []string{
			"https://m1.example/watch?v=abc123",
			"https://m2.example/watch?v=abc123",
		}, mirrorLocators)
		assert.True(t, cands[2].AlternateNetworkPath)
		assert.True(t, cands[3].AlternateNetworkPath)

		assert.Equal(t, `ytsearch1:Song A Artist B official audio`, cands[4].Locator)
	})

	t.Run("mirror_shuffle_varies_per_run", func(t *testing.T) {
		t.Parallel()

		gen := grab.Generator{Mirrors: []string{"https://m1.example", "https://m2.example", "https://m3.example", "https://m4.example", "https://m5.example"}}
		first := gen.Generate(track)
		seenDifferent := false
		for range 50 {
			next := gen.Generate(track)
			for i := 2; i < 7; i++ {
				if next[i].Locator != first[i].Locator {
					seenDifferent = true
				}
			}
		}
		assert.True(t, seenDifferent, "expected mirror sub-list order to vary across runs")
	})

	t.Run("delegated_token_tier_appended", func(t *testing.T) {
		t.Parallel()

		gen := grab.Generator{HasDelegatedToken: true}
		cands := gen.Generate(track)
		require.Len(t, cands, 4)
		last := cands[len(cands)-1]
		assert.Equal(t, "https://www.youtube.com/watch?v=abc123", last.Locator)
		assert.Equal(t, grab.AuthDelegatedToken, last.Auth)
	})

	t.Run("cookie_jar_before_delegated_token", func(t *testing.T) {
		t.Parallel()

		gen := grab.Generator{HasCookieJar: true, HasDelegatedToken: true}
		cands := gen.Generate(track)
		require.Len(t, cands, 5)
		assert.Equal(t, grab.AuthCookieJar, cands[3].Auth)
		assert.Equal(t, grab.AuthDelegatedToken, cands[4].Auth)
	})

	t.Run("no_source_id_leaves_search_only", func(t *testing.T) {
		t.Parallel()

		gen := grab.Generator{Mirrors: []string{"https://m1.example"}, HasDelegatedToken: true}
		cands := gen.Generate(grab.TrackDescriptor{Title: "Song A", Artist: "Artist B"})
		require.Len(t, cands, 1)
		assert.Equal(t, `ytsearch1:Song A Artist B official audio`, cands[0].Locator)
	})

	t.Run("empty_descriptor_yields_no_candidates", func(t *testing.T) {
		t.Parallel()

		cands := grab.Generator{}.Generate(grab.TrackDescriptor{})
		assert.Empty(t, cands)
	})
}
