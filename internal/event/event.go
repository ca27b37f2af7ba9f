// Package event normalizes inbound security alert records into the
// immutable form the sequence engine consumes: a nested field map, a UTC
// timestamp, and a stable event identifier.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"seqrule/internal/extract"
)

// Event is an immutable, normalized alert record.
type Event struct {
	// Fields is the nested field map. Values are scalars, nested
	// map[string]any nodes, or []any lists, as produced by JSON/YAML
	// decoding.
	Fields map[string]any

	// Timestamp is the event's wall-clock time in UTC.
	Timestamp time.Time

	// ID identifies the event. Externally supplied, or derived as a
	// digest of the canonical field-map serialization.
	ID string
}

// timestampLayouts are tried in order when parsing an event's timestamp
// field. Zone-less layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// New builds an Event from a field map. A zero timestamp defaults to the
// current wall clock; an empty id is derived deterministically from the
// canonicalized (sorted-keys) serialization of the fields.
func New(fields map[string]any, ts time.Time, id string) Event {
	if ts.IsZero() {
		ts = time.Now()
	}
	if id == "" {
		id = Digest(fields)
	}
	return Event{Fields: fields, Timestamp: ts.UTC(), ID: id}
}

// Digest returns the hex SHA-256 of the canonical JSON serialization of
// the field map. encoding/json sorts map keys, so the digest is stable
// regardless of insertion order.
func Digest(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		// Field maps produced by JSON/YAML decoding always marshal;
		// fall back to the textual form for anything exotic.
		data = []byte(fmt.Sprint(fields))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseTimestamp parses an ISO-8601 timestamp in any of the accepted
// layouts, returning the time in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", s)
}

// FromRecord builds an Event from a raw record, reading an optional
// top-level "timestamp" field. A missing timestamp defaults to now; an
// unparseable one is an error. The caller supplies now so batch runs
// stay deterministic.
func FromRecord(record map[string]any, now time.Time) (Event, error) {
	ts, err := recordTimestamp(record, now)
	if err != nil {
		return Event{}, err
	}
	return New(record, ts, ""), nil
}

// FromRecordLenient is FromRecord with the original stream-ingestion
// leniency: an unparseable timestamp falls back to now instead of
// failing. The returned bool reports whether the fallback fired, so the
// caller can log a structured warning.
func FromRecordLenient(record map[string]any, now time.Time) (Event, bool) {
	ts, err := recordTimestamp(record, now)
	if err != nil {
		return New(record, now, ""), true
	}
	return New(record, ts, ""), false
}

func recordTimestamp(record map[string]any, now time.Time) (time.Time, error) {
	raw := extract.Extract(record, "timestamp", nil)
	if raw == nil {
		return now, nil
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp field is not a string: %v", raw)
	}
	return ParseTimestamp(s)
}
