// Package engine implements the sequence matching core: it consumes
// normalized events, advances per-(rule, correlation key) state machines
// through each rule's ordered step predicates, and emits a Match every
// time a complete sequence is observed within the rule's time window.
//
// Matching is greedy and single-track: the engine maintains one
// in-flight attempt per (rule, key). A step transition that would exceed
// the window restarts the attempt, considering the current event as a
// potential new step 0. Out-of-order events never backfill earlier
// steps.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"seqrule/internal/event"
	"seqrule/internal/extract"
	"seqrule/internal/format"
	"seqrule/internal/logging"
	"seqrule/internal/rule"
)

// ErrDuplicateRule is returned when loading a rule whose id is already
// present in the engine.
var ErrDuplicateRule = errors.New("duplicate rule id")

// defaultKey is the correlation key used when a rule declares no "by"
// fields: a single global state per rule.
const defaultKey = "default"

type stateKey struct {
	ruleID string
	key    string
}

// Engine is a sequence matching engine instance. The event-processing
// path is single-writer: a mutex serializes ProcessEvent with rule
// loading and removal, so rule CRUD takes effect at a well-defined point
// between two event evaluations. Engines are cheap to create; batch
// testing uses a throwaway instance.
type Engine struct {
	mu     sync.RWMutex
	rules  []*rule.CompiledRule // in load order
	byID   map[string]*rule.CompiledRule
	states map[stateKey]*CorrelationState
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		byID:   make(map[string]*rule.CompiledRule),
		states: make(map[stateKey]*CorrelationState),
	}
}

// LoadRule compiles and loads a single rule. Loading a rule with an id
// already present fails with ErrDuplicateRule.
func (e *Engine) LoadRule(r rule.Rule) (*rule.CompiledRule, error) {
	compiled, err := rule.Compile(r)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byID[compiled.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, compiled.ID)
	}
	e.rules = append(e.rules, compiled)
	e.byID[compiled.ID] = compiled

	logging.Engine("loaded rule %s (%q, %d steps, window %s)",
		compiled.ID, compiled.Name, compiled.StepCount(), compiled.Window)
	return compiled, nil
}

// LoadRules compiles and loads multiple rules, stopping at the first
// failure.
func (e *Engine) LoadRules(rules []rule.Rule) ([]*rule.CompiledRule, error) {
	compiled := make([]*rule.CompiledRule, 0, len(rules))
	for _, r := range rules {
		c, err := e.LoadRule(r)
		if err != nil {
			return compiled, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

// UpsertRule loads a rule, replacing any already-loaded rule with the
// same id (and dropping that rule's correlation states).
func (e *Engine) UpsertRule(r rule.Rule) (*rule.CompiledRule, error) {
	e.RemoveRule(r.ID)
	return e.LoadRule(r)
}

// RemoveRule unloads a rule and drops its correlation states. Returns
// whether the rule was present.
func (e *Engine) RemoveRule(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byID[ruleID]; !exists {
		return false
	}
	delete(e.byID, ruleID)
	for i, r := range e.rules {
		if r.ID == ruleID {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			break
		}
	}
	for sk := range e.states {
		if sk.ruleID == ruleID {
			delete(e.states, sk)
		}
	}

	logging.Engine("removed rule %s", ruleID)
	return true
}

// Rules returns the loaded rules in load order.
func (e *Engine) Rules() []*rule.CompiledRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*rule.CompiledRule(nil), e.rules...)
}

// Reset drops all correlation state; loaded rules are retained.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = make(map[stateKey]*CorrelationState)
}

// ProcessEvent runs one event through every loaded rule, in load order,
// and returns the matches it completed. After dispatch, states idle past
// their rule's window are swept.
func (e *Engine) ProcessEvent(ev event.Event) []Match {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matches []Match
	for _, r := range e.rules {
		if m, ok := e.processForRule(ev, r); ok {
			matches = append(matches, m)
		}
	}

	e.sweepExpired(ev.Timestamp)
	return matches
}

// ProcessEvents processes events in input order and concatenates the
// results.
func (e *Engine) ProcessEvents(events []event.Event) []Match {
	var all []Match
	for _, ev := range events {
		all = append(all, e.ProcessEvent(ev)...)
	}
	return all
}

// processForRule advances the state machine for one rule. Caller holds
// the write lock.
func (e *Engine) processForRule(ev event.Event, r *rule.CompiledRule) (Match, bool) {
	key, ok := correlationKey(ev.Fields, r.By)
	if !ok {
		// A configured by-field is missing; the event does not exist
		// for this rule.
		return Match{}, false
	}

	sk := stateKey{ruleID: r.ID, key: key}
	st := e.states[sk]
	if st == nil {
		st = NewCorrelationState(key)
		e.states[sk] = st
	}

	if st.IsComplete(r.StepCount()) {
		st.Reset()
	}

	step := r.Steps[st.CurrentStep]
	if !step.Matches(ev.Fields) {
		return Match{}, false
	}

	if st.CurrentStep > 0 {
		if ev.Timestamp.Sub(st.FirstTS) > r.Window {
			// Window exceeded: restart and consider this event as a
			// potential new step 0.
			logging.EngineDebug("rule %s key %q: window exceeded, restarting", r.ID, key)
			st.Reset()
			if !r.Steps[0].Matches(ev.Fields) {
				return Match{}, false
			}
		}
	}

	st.Advance(ev.ID, ev.Timestamp)

	if !st.IsComplete(r.StepCount()) {
		return Match{}, false
	}

	ids := append([]string(nil), st.MatchedIDs...)
	st.Reset()

	m := Match{
		RuleID:          r.ID,
		RuleName:        r.Name,
		CorrelationKey:  key,
		MatchedEventIDs: ids,
		Timestamp:       ev.Timestamp.UTC(),
	}
	m.Formatted = format.Render(r.OutputFormat, format.Fields{
		Timestamp:      m.Timestamp,
		RuleID:         m.RuleID,
		RuleName:       m.RuleName,
		CorrelationKey: m.CorrelationKey,
		EventIDs:       m.MatchedEventIDs,
	})

	logging.Engine("match: rule %s key %q events %v", r.ID, key, ids)
	return m, true
}

// sweepExpired removes states whose last progress is older than their
// rule's window relative to now, plus states already reset to step 0.
// Each state is inspected at most once per sweep. Caller holds the
// write lock.
func (e *Engine) sweepExpired(now time.Time) {
	for sk, st := range e.states {
		if st.CurrentStep == 0 {
			delete(e.states, sk)
			continue
		}
		r := e.byID[sk.ruleID]
		if r == nil {
			delete(e.states, sk)
			continue
		}
		if now.Sub(st.LastTS) > r.Window {
			logging.EngineDebug("gc: dropping idle state rule %s key %q", sk.ruleID, sk.key)
			delete(e.states, sk)
		}
	}
}

// StateSummary snapshots every live correlation state, keyed by
// "ruleID/correlationKey".
func (e *Engine) StateSummary() map[string]StateInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	summary := make(map[string]StateInfo, len(e.states))
	for sk, st := range e.states {
		info := StateInfo{
			RuleID:          sk.ruleID,
			CorrelationKey:  sk.key,
			CurrentStep:     st.CurrentStep,
			MatchedEvents:   len(st.MatchedIDs),
			DurationSeconds: st.Duration().Seconds(),
		}
		if !st.FirstTS.IsZero() {
			info.FirstTimestamp = st.FirstTS.UTC().Format(time.RFC3339)
		}
		if !st.LastTS.IsZero() {
			info.LastTimestamp = st.LastTS.UTC().Format(time.RFC3339)
		}
		summary[sk.ruleID+"/"+sk.key] = info
	}
	return summary
}

// correlationKey derives the bucket key for an event under a rule's by
// list. An empty list yields the shared default key. If any configured
// field is absent (or explicitly null) the event is ignored for this
// rule and ok is false.
func correlationKey(fields map[string]any, by []string) (string, bool) {
	if len(by) == 0 {
		return defaultKey, true
	}

	parts := make([]string, 0, len(by))
	for _, path := range by {
		value := extract.Extract(fields, path, nil)
		if value == nil {
			return "", false
		}
		parts = append(parts, extract.Stringify(value))
	}
	return strings.Join(parts, "|"), true
}
