package ratelimit

import (
	"math/rand/v2"
	"time"
)

// CandidateAttemptSleep returns the pause inserted between consecutive
// candidate attempts of one run. Hitting the same catalog back to back from
// the same address is what gets the address blocked in the first place.
func CandidateAttemptSleep() time.Duration {
	const (
		from = 1
		to   = 3
	)
	millis := (rand.IntN(to-from)+from)*1000 + rand.N(1000) //nolint:gosec
	return time.Duration(millis) * time.Millisecond
}
