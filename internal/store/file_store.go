package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"seqrule/internal/logging"
	"seqrule/internal/rule"
)

// FileStore keeps one YAML file per rule under a directory, named
// "<rule id>.yaml". The same directory can be watched for hot reload.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating if needed) a rules directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create rules dir: %w", err)
	}
	logging.Store("file store opened at %s", dir)
	return &FileStore{dir: dir}, nil
}

// Dir returns the rules directory path.
func (fs *FileStore) Dir() string { return fs.dir }

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+".yaml")
}

// List returns all parseable rules, sorted by id. Files that fail to
// parse are logged and skipped.
func (fs *FileStore) List() ([]rule.Rule, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var rules []rule.Rule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		r, err := fs.readFile(filepath.Join(fs.dir, name))
		if err != nil {
			logging.StoreWarn("skipping rule file %s: %v", name, err)
			continue
		}
		rules = append(rules, r)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (fs *FileStore) Get(id string) (rule.Rule, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	r, err := fs.readFile(fs.path(id))
	if os.IsNotExist(err) {
		return rule.Rule{}, ErrRuleNotFound
	}
	return r, err
}

func (fs *FileStore) Create(r rule.Rule) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.path(r.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
	}
	return fs.writeFile(path, r)
}

func (fs *FileStore) Update(id string, r rule.Rule) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	old := fs.path(id)
	if _, err := os.Stat(old); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		return err
	}

	if err := fs.writeFile(fs.path(r.ID), r); err != nil {
		return err
	}
	if r.ID != id {
		// Re-keyed: the rule now lives under its new id.
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("remove re-keyed rule file: %w", err)
		}
	}
	return nil
}

func (fs *FileStore) Delete(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return err
}

func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) readFile(path string) (rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rule.Rule{}, err
	}
	var r rule.Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return rule.Rule{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return r, nil
}

func (fs *FileStore) writeFile(path string, r rule.Rule) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal rule %s: %w", r.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rule file: %w", err)
	}
	logging.StoreDebug("wrote rule file %s", filepath.Base(path))
	return nil
}
