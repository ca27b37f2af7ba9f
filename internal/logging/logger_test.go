package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestLogging points the package at a temp workspace with debug
// mode on and resets it when the test finishes.
func initTestLogging(t *testing.T, configYAML string) string {
	t.Helper()

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".seqrule"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(ws, ".seqrule", "config.yaml"), []byte(configYAML), 0o644))

	require.NoError(t, Initialize(ws))
	t.Cleanup(func() {
		CloseAll()
		config = loggingConfig{}
		logsDir = ""
		workspace = ""
	})
	return ws
}

func TestLogging_DisabledWithoutDebugMode(t *testing.T) {
	ws := initTestLogging(t, "logging:\n  debug_mode: false\n")

	Engine("this should go nowhere")
	CloseAll()

	_, err := os.Stat(filepath.Join(ws, ".seqrule", "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestLogging_WritesCategoryFile(t *testing.T) {
	ws := initTestLogging(t, "logging:\n  debug_mode: true\n  level: debug\n")

	Engine("processed %d events", 3)
	EngineDebug("state advanced")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".seqrule", "logs"))
	require.NoError(t, err)

	var engineLog string
	for _, e := range entries {
		if strings.Contains(e.Name(), "engine") {
			engineLog = filepath.Join(ws, ".seqrule", "logs", e.Name())
		}
	}
	require.NotEmpty(t, engineLog, "engine log file should exist")

	data, err := os.ReadFile(engineLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "processed 3 events")
	assert.Contains(t, string(data), "[DEBUG] state advanced")
}

func TestLogging_LevelGate(t *testing.T) {
	ws := initTestLogging(t, "logging:\n  debug_mode: true\n  level: warn\n")

	Engine("info is below warn")
	EngineWarn("warn passes")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".seqrule", "logs"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := os.ReadFile(filepath.Join(ws, ".seqrule", "logs", entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "info is below warn")
	assert.Contains(t, string(data), "warn passes")
}

func TestLogging_CategoryToggle(t *testing.T) {
	initTestLogging(t, `
logging:
  debug_mode: true
  categories:
    engine: false
    store: true
`)

	assert.False(t, IsCategoryEnabled(CategoryEngine))
	assert.True(t, IsCategoryEnabled(CategoryStore))
	assert.True(t, IsCategoryEnabled(CategoryAPI)) // unlisted defaults to on
}

func TestAudit_RoundTrip(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, InitAudit(ws))
	defer CloseAudit()

	Audit(AuditRuleCreate, "seq-1", map[string]any{"source": "api"})
	Audit(AuditMatchEmitted, "seq-1", map[string]any{"correlation_key": "a"})
	CloseAudit()

	data, err := os.ReadFile(filepath.Join(ws, ".seqrule", "logs", "audit.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var ev AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, AuditRuleCreate, ev.Type)
	assert.Equal(t, "seq-1", ev.RuleID)
	assert.Equal(t, "api", ev.Detail["source"])
	assert.NotEmpty(t, ev.Timestamp)
}

func TestAudit_NoopWhenUninitialized(t *testing.T) {
	CloseAudit()
	assert.False(t, AuditEnabled())
	Audit(AuditRuleDelete, "seq-1", nil) // must not panic
}
