// Package session holds per-requester transient pagination state over the
// last search result set. State lives for the process lifetime only and is
// replaced wholesale by each new search.
package session

import (
	"sync"

	"github.com/xeptore/tgym/grab"
	"github.com/xeptore/tgym/mathutil"
)

type state struct {
	results []grab.TrackDescriptor
	cursor  int
}

type Store struct {
	mux      sync.Mutex
	sessions map[int64]*state
}

func NewStore() *Store {
	return &Store{
		mux:      sync.Mutex{},
		sessions: make(map[int64]*state),
	}
}

// RecordResults replaces any existing session of the requester with the given
// result set and resets the cursor.
func (s *Store) RecordResults(requesterID int64, results []grab.TrackDescriptor) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.sessions[requesterID] = &state{results: append([]grab.TrackDescriptor(nil), results...), cursor: 0}
}

// Advance moves the requester's cursor by delta, clamped to the result
// bounds. It is a no-op for unknown requesters and empty result sets.
func (s *Store) Advance(requesterID int64, delta int) {
	s.mux.Lock()
	defer s.mux.Unlock()
	sess, ok := s.sessions[requesterID]
	if !ok || len(sess.results) == 0 {
		return
	}
	sess.cursor = mathutil.Clamp(sess.cursor+delta, 0, len(sess.results)-1)
}

// Current returns the track the requester's cursor points at.
func (s *Store) Current(requesterID int64) (grab.TrackDescriptor, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	sess, ok := s.sessions[requesterID]
	if !ok || len(sess.results) == 0 {
		return grab.TrackDescriptor{}, false
	}
	return sess.results[sess.cursor], true
}

// Position returns the requester's 0-based cursor and the result count.
func (s *Store) Position(requesterID int64) (cursor, total int, ok bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	sess, found := s.sessions[requesterID]
	if !found || len(sess.results) == 0 {
		return 0, 0, false
	}
	return sess.cursor, len(sess.results), true
}
