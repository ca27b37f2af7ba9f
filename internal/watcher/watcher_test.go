package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"seqrule/internal/engine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const ruleYAML = `
id: seq-1
name: Login then file access
by: [agent.id]
within_seconds: 60
sequence:
  - as: login
    where: event.type == "login"
  - as: access
    where: event.type == "file_access"
`

// waitFor polls until cond is true or the deadline passes. fsnotify
// delivery plus the debounce window makes timing inherently loose.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func startWatcher(t *testing.T, dir string, eng *engine.Engine) *RuleWatcher {
	t.Helper()
	rw, err := New(dir, eng)
	require.NoError(t, err)
	require.NoError(t, rw.Start(context.Background()))
	t.Cleanup(rw.Stop)
	return rw
}

func TestWatcher_LoadsNewRuleFile(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New()
	rw := startWatcher(t, dir, eng)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seq-1.yaml"), []byte(ruleYAML), 0o644))

	waitFor(t, func() bool { return len(eng.Rules()) == 1 })
	assert.Equal(t, "seq-1", eng.Rules()[0].ID)
	assert.GreaterOrEqual(t, rw.GetStats().Reloads, 1)
}

func TestWatcher_ReloadsChangedRule(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New()
	startWatcher(t, dir, eng)

	path := filepath.Join(dir, "seq-1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ruleYAML), 0o644))
	waitFor(t, func() bool { return len(eng.Rules()) == 1 })

	renamed := `
id: seq-1
name: Renamed
within_seconds: 30
sequence:
  - as: only
    where: event.type == "login"
`
	require.NoError(t, os.WriteFile(path, []byte(renamed), 0o644))

	waitFor(t, func() bool {
		rules := eng.Rules()
		return len(rules) == 1 && rules[0].Name == "Renamed"
	})
}

func TestWatcher_RemovesDeletedRule(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New()
	startWatcher(t, dir, eng)

	path := filepath.Join(dir, "seq-1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ruleYAML), 0o644))
	waitFor(t, func() bool { return len(eng.Rules()) == 1 })

	require.NoError(t, os.Remove(path))
	waitFor(t, func() bool { return len(eng.Rules()) == 0 })
}

func TestWatcher_BadRuleFileDoesNotLoad(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New()
	rw := startWatcher(t, dir, eng)

	bad := "id: bad\nname: Bad\nwithin_seconds: 60\nsequence:\n  - as: s\n    where: not an expression\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644))

	waitFor(t, func() bool { return rw.GetStats().ReloadsFailed >= 1 })
	assert.Empty(t, eng.Rules())
}

func TestWatcher_IgnoresNonRuleFiles(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New()
	rw := startWatcher(t, dir, eng)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))

	time.Sleep(700 * time.Millisecond)
	assert.Empty(t, eng.Rules())
	assert.Zero(t, rw.GetStats().Reloads)
}

func TestWatcher_SyncAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seq-1.yaml"), []byte(ruleYAML), 0o644))

	eng := engine.New()
	rw, err := New(dir, eng)
	require.NoError(t, err)
	require.NoError(t, rw.Start(context.Background()))
	defer rw.Stop()

	require.NoError(t, rw.SyncAll())
	require.Len(t, eng.Rules(), 1)
	assert.Equal(t, "seq-1", eng.Rules()[0].ID)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	rw, err := New(t.TempDir(), engine.New())
	require.NoError(t, err)
	require.NoError(t, rw.Start(context.Background()))
	assert.True(t, rw.IsWatching())

	rw.Stop()
	rw.Stop()
	assert.False(t, rw.IsWatching())
}
