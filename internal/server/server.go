// Package server exposes the HTTP control surface: rule CRUD backed by
// a store, rule validation and batch testing, live event ingestion, and
// engine state inspection. Rule mutations are applied to the serving
// engine at the same time they are persisted.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"seqrule/internal/engine"
	"seqrule/internal/event"
	"seqrule/internal/harness"
	"seqrule/internal/logging"
	"seqrule/internal/rule"
	"seqrule/internal/store"
)

// Server wires the rule store and the live engine behind an HTTP mux.
type Server struct {
	store       store.Store
	engine      *engine.Engine
	testTimeout time.Duration
}

// New creates a Server. testTimeout bounds one POST /rules/test batch;
// zero means 10 seconds.
func New(st store.Store, eng *engine.Engine, testTimeout time.Duration) *Server {
	if testTimeout <= 0 {
		testTimeout = 10 * time.Second
	}
	return &Server{store: st, engine: eng, testTimeout: testTimeout}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rules", s.handleListRules)
	mux.HandleFunc("POST /rules", s.handleCreateRule)
	mux.HandleFunc("GET /rules/{id}", s.handleGetRule)
	mux.HandleFunc("PUT /rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /rules/validate", s.handleValidateRule)
	mux.HandleFunc("POST /rules/test", s.handleTestRule)
	mux.HandleFunc("POST /events", s.handleIngestEvents)
	mux.HandleFunc("GET /state", s.handleState)

	return withRequestID(mux)
}

// withRequestID tags every request with a correlation id, echoed in the
// X-Request-ID response header and carried through the API log.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logging.APIDebug("[%s] %s %s", id, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if rules == nil {
		rules = []rule.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var doc rule.Rule
	if !decodeBody(w, r, &doc) {
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if _, err := rule.Compile(doc); err != nil {
		writeCompileError(w, err)
		return
	}

	if err := s.store.Create(doc); err != nil {
		if errors.Is(err, store.ErrRuleExists) {
			writeError(w, http.StatusConflict, "duplicate_rule", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if s.engine != nil {
		if _, err := s.engine.UpsertRule(doc); err != nil {
			logging.APIError("rule %s persisted but not loaded: %v", doc.ID, err)
		}
	}

	logging.API("created rule %s", doc.ID)
	logging.Audit(logging.AuditRuleCreate, doc.ID, map[string]any{"source": "api"})
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var doc rule.Rule
	if !decodeBody(w, r, &doc) {
		return
	}
	if doc.ID == "" {
		doc.ID = id
	}

	if _, err := rule.Compile(doc); err != nil {
		writeCompileError(w, err)
		return
	}

	if err := s.store.Update(id, doc); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if s.engine != nil {
		if doc.ID != id {
			s.engine.RemoveRule(id)
		}
		if _, err := s.engine.UpsertRule(doc); err != nil {
			logging.APIError("rule %s updated but not reloaded: %v", doc.ID, err)
		}
	}

	logging.API("updated rule %s", id)
	logging.Audit(logging.AuditRuleUpdate, doc.ID, map[string]any{"source": "api", "previous_id": id})
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if s.engine != nil {
		s.engine.RemoveRule(id)
	}

	logging.API("deleted rule %s", id)
	logging.Audit(logging.AuditRuleDelete, id, map[string]any{"source": "api"})
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateRule compiles a rule without persisting or loading it.
func (s *Server) handleValidateRule(w http.ResponseWriter, r *http.Request) {
	var doc rule.Rule
	if !decodeBody(w, r, &doc) {
		return
	}

	compiled, err := rule.Compile(doc)
	if err != nil {
		writeCompileError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"rule": harness.RuleInfo{
			ID:            compiled.ID,
			Name:          compiled.Name,
			By:            compiled.By,
			WithinSeconds: compiled.WithinSeconds,
			Steps:         compiled.StepCount(),
		},
	})
}

// testRequest is the POST /rules/test body.
type testRequest struct {
	Rule   rule.Rule        `json:"rule"`
	Events []map[string]any `json:"events"`
}

func (s *Server) handleTestRule(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.testTimeout)
	defer cancel()

	type outcome struct {
		result *harness.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := harness.Run(req.Rule, req.Events, time.Now().UTC())
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, "test_timeout", "batch test exceeded the time budget")
	case out := <-done:
		if out.err != nil {
			var recErr *harness.RecordError
			if errors.As(out.err, &recErr) {
				writeError(w, http.StatusBadRequest, "event_shape", out.err.Error())
				return
			}
			writeCompileError(w, out.err)
			return
		}
		writeJSON(w, http.StatusOK, out.result)
	}
}

// ingestResponse is the POST /events reply.
type ingestResponse struct {
	EventsProcessed int            `json:"events_processed"`
	Matches         []engine.Match `json:"matches"`
}

// handleIngestEvents feeds raw event records to the serving engine.
// Timestamps that fail to parse fall back to the ingestion wall clock.
func (s *Server) handleIngestEvents(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "no_engine", "event ingestion is not enabled")
		return
	}

	var items []any
	if !decodeBody(w, r, &items) {
		return
	}

	now := time.Now().UTC()
	matches := []engine.Match{}
	processed := 0
	for i, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			// A malformed record must not poison the rest of the stream.
			logging.APIError("skipping event %d: record is not an object", i)
			continue
		}
		ev, fellBack := event.FromRecordLenient(record, now)
		if fellBack {
			logging.APIDebug("event %s: unparseable timestamp, using ingestion time", ev.ID)
		}
		matches = append(matches, s.engine.ProcessEvent(ev)...)
		processed++
	}

	for _, m := range matches {
		logging.Audit(logging.AuditMatchEmitted, m.RuleID, map[string]any{
			"correlation_key": m.CorrelationKey,
			"event_ids":       m.MatchedEventIDs,
		})
	}
	logging.Audit(logging.AuditEventsIngested, "", map[string]any{"count": processed})

	writeJSON(w, http.StatusOK, ingestResponse{
		EventsProcessed: processed,
		Matches:         matches,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "no_engine", "no serving engine")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.StateSummary())
}
