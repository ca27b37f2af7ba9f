package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"seqrule/internal/logging"
	"seqrule/internal/rule"
)

// apiError is the uniform error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Alias   string `json:"alias,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.APIError("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

// writeCompileError maps rule compilation failures to structured 400s.
func writeCompileError(w http.ResponseWriter, err error) {
	var verr *rule.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]apiError{"error": {
			Code:    "rule_shape",
			Message: verr.Error(),
			Field:   verr.Field,
		}})
		return
	}

	var perr *rule.PredicateError
	if errors.As(err, &perr) {
		writeJSON(w, http.StatusBadRequest, map[string]apiError{"error": {
			Code:    "predicate_syntax",
			Message: perr.Error(),
			Alias:   perr.Alias,
		}})
		return
	}

	writeError(w, http.StatusBadRequest, "bad_request", err.Error())
}

// decodeBody parses a JSON request body into dst, answering 400 on
// malformed input. Returns false when the response has been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
