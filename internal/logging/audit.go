package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType names an auditable action in the rule lifecycle or the
// detection path.
type AuditEventType string

const (
	// Rule lifecycle -> who changed the detection surface, and when.
	AuditRuleCreate AuditEventType = "rule_create"
	AuditRuleUpdate AuditEventType = "rule_update"
	AuditRuleDelete AuditEventType = "rule_delete"
	AuditRuleReload AuditEventType = "rule_reload"

	// Detection path
	AuditMatchEmitted   AuditEventType = "match_emitted"
	AuditEventsIngested AuditEventType = "events_ingested"
)

// AuditEvent is one JSONL line in the audit trail.
type AuditEvent struct {
	Timestamp string         `json:"ts"` // RFC3339Nano UTC
	Type      AuditEventType `json:"type"`
	RuleID    string         `json:"rule_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// auditLogger appends audit events to a single JSONL file. Unlike the
// category loggers it is not gated by debug_mode: an audit trail that
// disappears in production is not an audit trail.
type auditLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

var (
	audit   *auditLogger
	auditMu sync.RWMutex
)

// InitAudit opens (creating if needed) the audit trail at
// <workspace>/.seqrule/logs/audit.jsonl.
func InitAudit(workspace string) error {
	dir := filepath.Join(workspace, ".seqrule", "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	path := filepath.Join(dir, "audit.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if audit != nil {
		audit.close()
	}
	audit = &auditLogger{file: file, enc: json.NewEncoder(file)}
	return nil
}

// AuditEnabled reports whether the audit trail is open.
func AuditEnabled() bool {
	auditMu.RLock()
	defer auditMu.RUnlock()
	return audit != nil
}

// Audit records one event. A no-op until InitAudit has been called.
func Audit(eventType AuditEventType, ruleID string, detail map[string]any) {
	auditMu.RLock()
	a := audit
	auditMu.RUnlock()
	if a == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.enc.Encode(AuditEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      eventType,
		RuleID:    ruleID,
		Detail:    detail,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: audit write failed: %v\n", err)
	}
}

// CloseAudit closes the audit trail (call at shutdown).
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if audit != nil {
		audit.close()
		audit = nil
	}
}

func (a *auditLogger) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		a.file.Close()
		a.file = nil
	}
}
