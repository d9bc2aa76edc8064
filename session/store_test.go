package session_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/tgym/grab"
	"github.com/xeptore/tgym/session"
)

func results(titles ...string) []grab.TrackDescriptor {
	out := make([]grab.TrackDescriptor, len(titles))
	for i, title := range titles {
		out[i] = grab.TrackDescriptor{Title: title, SourceID: title + "-id"}
	}
	return out
}

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("unknown_requester", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		_, ok := store.Current(42)
		assert.False(t, ok)
		store.Advance(42, 1)
		_, _, ok = store.Position(42)
		assert.False(t, ok)
	})

	t.Run("record_resets_cursor", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		store.RecordResults(1, results("a", "b", "c"))
		store.Advance(1, 2)

		store.RecordResults(1, results("x", "y"))
		track, ok := store.Current(1)
		require.True(t, ok)
		assert.Equal(t, "x", track.Title)
	})

	t.Run("advance_clamps", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		store.RecordResults(1, results("a", "b", "c"))

		store.Advance(1, -5)
		cursor, total, ok := store.Position(1)
		require.True(t, ok)
		assert.Equal(t, 0, cursor)
		assert.Equal(t, 3, total)

		store.Advance(1, 10)
		cursor, _, _ = store.Position(1)
		assert.Equal(t, 2, cursor)
	})

	// The identity only holds while both moves stay in bounds; at the edges
	// one leg clamps to a no-op, which is also why the keyboard hides the
	// Prev/Next button there.
	t.Run("round_trip_inside_bounds_is_identity", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		for start := 0; start < 3; start++ {
			store.RecordResults(1, results("a", "b", "c", "d"))
			store.Advance(1, start)
			before, _, _ := store.Position(1)
			store.Advance(1, 1)
			store.Advance(1, -1)
			after, _, _ := store.Position(1)
			assert.Equal(t, before, after)
		}
	})

	t.Run("advance_at_last_result_is_noop", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		store.RecordResults(1, results("a", "b", "c"))
		store.Advance(1, 2)
		store.Advance(1, 1)
		cursor, _, _ := store.Position(1)
		assert.Equal(t, 2, cursor)

		store.Advance(1, -1)
		cursor, _, _ = store.Position(1)
		assert.Equal(t, 1, cursor)
	})

	t.Run("empty_results", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		store.RecordResults(1, nil)
		store.Advance(1, 1)
		_, ok := store.Current(1)
		assert.False(t, ok)
	})

	t.Run("concurrent_navigation_stays_in_bounds", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore()
		store.RecordResults(1, results("a", "b", "c", "d", "e"))

		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					store.Advance(1, 1)
				} else {
					store.Advance(1, -1)
				}
			}()
		}
		wg.Wait()

		cursor, total, ok := store.Position(1)
		require.True(t, ok)
		assert.Equal(t, 5, total)
		assert.GreaterOrEqual(t, cursor, 0)
		assert.Less(t, cursor, 5)
	})
}
