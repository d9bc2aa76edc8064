package grab

import "fmt"

// ResolvedSource is the result of a successful probe. Locator and ID may
// differ from the probed candidate's when the candidate was a search form.
type ResolvedSource struct {
	ID       string
	Locator  string
	Variants []StreamVariant
}

// Unresolved marks one failed candidate attempt. It is recorded and recovered
// from by advancing the fallback chain, never surfaced per-attempt.
type Unresolved struct {
	Reason string
}

// ExhaustedError is the only failure the orchestrator surfaces: every
// candidate of a run failed. Attempted counts probed candidates and
// LastReason carries the final candidate's failure for diagnosis.
type ExhaustedError struct {
	Attempted  int
	LastReason string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d fetch candidates exhausted, last reason: %s", e.Attempted, e.LastReason)
}
