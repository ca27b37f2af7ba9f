// Package watcher keeps a serving engine in sync with a rules
// directory: changed or created rule files are recompiled and hot
// loaded, removed files unload their rule. The rule id is the file
// basename without extension, matching the file store layout.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"seqrule/internal/engine"
	"seqrule/internal/logging"
	"seqrule/internal/rule"
)

// RuleWatcher watches a rules directory and applies rule file changes
// to a live engine. Rapid saves are debounced so editors that write in
// multiple syscalls trigger a single reload.
type RuleWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	engine      *engine.Engine
	rulesDir    string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity for debugging and tests.
type Stats struct {
	Reloads       int
	Removals      int
	ReloadsFailed int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// New creates a RuleWatcher over rulesDir, applying changes to eng.
func New(rulesDir string, eng *engine.Engine) (*RuleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &RuleWatcher{
		watcher:     w,
		engine:      eng,
		rulesDir:    rulesDir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a
// goroutine until Stop or context cancellation.
func (rw *RuleWatcher) Start(ctx context.Context) error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return nil
	}
	rw.running = true
	rw.mu.Unlock()

	if err := os.MkdirAll(rw.rulesDir, 0o755); err != nil {
		logging.WatchDebug("create rules dir %s: %v", rw.rulesDir, err)
	}
	if err := rw.watcher.Add(rw.rulesDir); err != nil {
		rw.mu.Lock()
		rw.running = false
		rw.mu.Unlock()
		return err
	}

	logging.Watch("watching rules directory %s", rw.rulesDir)
	go rw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (rw *RuleWatcher) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	rw.mu.Unlock()

	close(rw.stopCh)
	<-rw.doneCh

	if err := rw.watcher.Close(); err != nil {
		logging.WatchDebug("close watcher: %v", err)
	}
	logging.Watch("stopped")
}

// IsWatching reports whether the event loop is live.
func (rw *RuleWatcher) IsWatching() bool {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.running
}

// GetStats snapshots the activity counters.
func (rw *RuleWatcher) GetStats() Stats {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.stats
}

// SyncAll loads every rule file currently in the directory. Called at
// startup so the engine starts from the persisted rule set.
func (rw *RuleWatcher) SyncAll() error {
	entries, err := os.ReadDir(rw.rulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isRuleFile(entry.Name()) {
			continue
		}
		rw.reload(filepath.Join(rw.rulesDir, entry.Name()))
	}
	return nil
}

func (rw *RuleWatcher) run(ctx context.Context) {
	defer close(rw.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-rw.stopCh:
			return

		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleEvent(ev)

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchDebug("watch error: %v", err)
			rw.mu.Lock()
			rw.stats.Errors++
			rw.mu.Unlock()

		case <-debounceTicker.C:
			rw.processDebounced()
		}
	}
}

func (rw *RuleWatcher) handleEvent(ev fsnotify.Event) {
	if !isRuleFile(ev.Name) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		rw.mu.Lock()
		rw.debounceMap[ev.Name] = time.Now()
		rw.stats.LastEventPath = ev.Name
		rw.stats.LastEventTime = time.Now()
		rw.mu.Unlock()

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename delivers the old path; treat it as removal. If the
		// file reappears under a new name, that path gets its own
		// create event.
		rw.mu.Lock()
		delete(rw.debounceMap, ev.Name)
		rw.stats.LastEventPath = ev.Name
		rw.stats.LastEventTime = time.Now()
		rw.mu.Unlock()
		rw.remove(ev.Name)
	}
}

func (rw *RuleWatcher) processDebounced() {
	rw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range rw.debounceMap {
		if now.Sub(at) >= rw.debounceDur {
			settled = append(settled, path)
			delete(rw.debounceMap, path)
		}
	}
	rw.mu.Unlock()

	for _, path := range settled {
		rw.reload(path)
	}
}

// reload parses one rule file and upserts it into the engine.
func (rw *RuleWatcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		logging.WatchDebug("read %s: %v", path, err)
		rw.bumpFailed()
		return
	}

	var doc rule.Rule
	if err := yaml.Unmarshal(data, &doc); err != nil {
		logging.Watch("rule file %s is not valid YAML: %v", filepath.Base(path), err)
		rw.bumpFailed()
		return
	}
	if doc.ID == "" {
		doc.ID = ruleID(path)
	}

	if _, err := rw.engine.UpsertRule(doc); err != nil {
		logging.Watch("rule file %s failed to compile: %v", filepath.Base(path), err)
		rw.bumpFailed()
		return
	}

	rw.mu.Lock()
	rw.stats.Reloads++
	rw.mu.Unlock()
	logging.Watch("reloaded rule %s from %s", doc.ID, filepath.Base(path))
	logging.Audit(logging.AuditRuleReload, doc.ID, map[string]any{"file": filepath.Base(path)})
}

// remove unloads the rule whose file disappeared.
func (rw *RuleWatcher) remove(path string) {
	if rw.engine.RemoveRule(ruleID(path)) {
		rw.mu.Lock()
		rw.stats.Removals++
		rw.mu.Unlock()
		logging.Watch("unloaded rule %s", ruleID(path))
		logging.Audit(logging.AuditRuleDelete, ruleID(path), map[string]any{"source": "watcher"})
	}
}

func (rw *RuleWatcher) bumpFailed() {
	rw.mu.Lock()
	rw.stats.ReloadsFailed++
	rw.mu.Unlock()
}

func isRuleFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func ruleID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
}
