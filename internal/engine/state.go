package engine

import "time"

// CorrelationState tracks one in-flight sequence attempt for a single
// (rule, correlation key) pair: the step currently awaited, the ids and
// timestamps of every matched event so far.
//
// Invariants: len(MatchedIDs) == len(Timestamps) == CurrentStep; while
// progress exists, FirstTS <= LastTS and LastTS-FirstTS never exceeds
// the rule's window. Only the engine's single-writer path mutates it.
type CorrelationState struct {
	Key         string
	CurrentStep int
	MatchedIDs  []string
	Timestamps  []time.Time
	FirstTS     time.Time
	LastTS      time.Time
}

// NewCorrelationState creates an empty state for a correlation key.
func NewCorrelationState(key string) *CorrelationState {
	return &CorrelationState{Key: key}
}

// Advance records a matched event and moves to the next step.
func (s *CorrelationState) Advance(eventID string, ts time.Time) {
	s.MatchedIDs = append(s.MatchedIDs, eventID)
	s.Timestamps = append(s.Timestamps, ts)
	if s.FirstTS.IsZero() {
		s.FirstTS = ts
	}
	s.LastTS = ts
	s.CurrentStep++
}

// Reset clears all progress, returning the state to step 0.
func (s *CorrelationState) Reset() {
	s.CurrentStep = 0
	s.MatchedIDs = s.MatchedIDs[:0]
	s.Timestamps = s.Timestamps[:0]
	s.FirstTS = time.Time{}
	s.LastTS = time.Time{}
}

// IsComplete reports whether all totalSteps steps have been matched.
func (s *CorrelationState) IsComplete(totalSteps int) bool {
	return s.CurrentStep >= totalSteps
}

// IsExpired reports whether the attempt can no longer complete: progress
// exists and more than window has elapsed since the first matched event.
func (s *CorrelationState) IsExpired(now time.Time, window time.Duration) bool {
	if s.CurrentStep == 0 || s.FirstTS.IsZero() {
		return false
	}
	return now.Sub(s.FirstTS) > window
}

// Duration returns the elapsed time between the first and last matched
// events, or zero without enough progress.
func (s *CorrelationState) Duration() time.Duration {
	if s.FirstTS.IsZero() || s.LastTS.IsZero() {
		return 0
	}
	return s.LastTS.Sub(s.FirstTS)
}
