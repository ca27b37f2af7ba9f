package engine

import "time"

// Match is an immutable record of a completed sequence for one
// correlation key. Timestamp is the time of the event that satisfied the
// final step, in UTC.
type Match struct {
	RuleID          string    `json:"rule_id"`
	RuleName        string    `json:"rule_name"`
	CorrelationKey  string    `json:"correlation_key"`
	MatchedEventIDs []string  `json:"matched_event_ids"`
	Timestamp       time.Time `json:"timestamp"`
	Formatted       string    `json:"formatted"`
}

// StateInfo is an observability snapshot of one correlation state.
type StateInfo struct {
	RuleID          string  `json:"rule_id"`
	CorrelationKey  string  `json:"correlation_key"`
	CurrentStep     int     `json:"current_step"`
	MatchedEvents   int     `json:"matched_events"`
	FirstTimestamp  string  `json:"first_timestamp,omitempty"`
	LastTimestamp   string  `json:"last_timestamp,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}
