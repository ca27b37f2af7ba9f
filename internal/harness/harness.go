// Package harness runs a single rule against a batch of event records
// on a throwaway engine instance: the "does this rule do what I think"
// surface behind rule testing in the CLI and the control plane.
package harness

import (
	"fmt"
	"time"

	"seqrule/internal/engine"
	"seqrule/internal/event"
	"seqrule/internal/logging"
	"seqrule/internal/rule"
)

// RuleInfo is the compiled metadata echoed back with a batch result.
type RuleInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	By            []string `json:"by"`
	WithinSeconds int      `json:"within_seconds"`
	Steps         int      `json:"steps"`
}

// Result is the outcome of one batch run.
type Result struct {
	Rule            RuleInfo       `json:"rule"`
	EventsProcessed int            `json:"events_processed"`
	Matches         []engine.Match `json:"matches"`
}

// RecordError reports a batch event record that failed to parse. Index
// is 0-based into the input batch.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("event record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Run compiles the rule, replays the records through a fresh engine in
// input order, and returns all emitted matches. Records may carry an
// ISO-8601 "timestamp" field; absent timestamps default to now. A record
// that fails to parse aborts the batch with a RecordError naming its
// index. Compile failures are returned as-is (ValidationError or
// PredicateError).
func Run(r rule.Rule, records []map[string]any, now time.Time) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryHarness, fmt.Sprintf("batch test of rule %q", r.ID))
	defer timer.Stop()

	e := engine.New()
	compiled, err := e.LoadRule(r)
	if err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(records))
	for i, record := range records {
		ev, err := event.FromRecord(record, now)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		events = append(events, ev)
	}

	matches := e.ProcessEvents(events)
	if matches == nil {
		matches = []engine.Match{}
	}

	logging.Harness("rule %q: %d events, %d matches", r.ID, len(events), len(matches))

	return &Result{
		Rule: RuleInfo{
			ID:            compiled.ID,
			Name:          compiled.Name,
			By:            compiled.By,
			WithinSeconds: compiled.WithinSeconds,
			Steps:         compiled.StepCount(),
		},
		EventsProcessed: len(events),
		Matches:         matches,
	}, nil
}
