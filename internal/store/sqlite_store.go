package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"seqrule/internal/logging"
	"seqrule/internal/rule"
)

// SQLiteStore keeps rules in a single SQLite database. The full rule is
// stored as a JSON document alongside indexed metadata columns.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) a rule database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open rule database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure rule schema: %w", err)
	}

	logging.Store("sqlite store opened at %s", path)
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rules_name ON rules(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) List() ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, doc FROM rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []rule.Rule
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		var r rule.Rule
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			logging.StoreWarn("skipping unreadable rule %s: %v", id, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *SQLiteStore) Get(id string) (rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRow(`SELECT doc FROM rules WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return rule.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return rule.Rule{}, fmt.Errorf("get rule %s: %w", id, err)
	}

	var r rule.Rule
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return rule.Rule{}, fmt.Errorf("decode rule %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteStore) Create(r rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", r.ID, err)
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM rules WHERE id = ?`, r.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check rule %s: %w", r.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
	}

	_, err = s.db.Exec(
		`INSERT INTO rules (id, name, doc) VALUES (?, ?, ?)`,
		r.ID, r.Name, string(doc),
	)
	if err != nil {
		return fmt.Errorf("insert rule %s: %w", r.ID, err)
	}
	logging.StoreDebug("created rule %s", r.ID)
	return nil
}

func (s *SQLiteStore) Update(id string, r rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", r.ID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("update rule %s: %w", id, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM rules WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check rule %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	if r.ID != id {
		if _, err := tx.Exec(`DELETE FROM rules WHERE id = ?`, id); err != nil {
			return fmt.Errorf("re-key rule %s: %w", id, err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO rules (id, name, doc) VALUES (?, ?, ?)`,
			r.ID, r.Name, string(doc),
		); err != nil {
			return fmt.Errorf("re-key rule %s: %w", id, err)
		}
	} else {
		if _, err := tx.Exec(
			`UPDATE rules SET name = ?, doc = ?, updated_at = ? WHERE id = ?`,
			r.Name, string(doc), time.Now().UTC(), id,
		); err != nil {
			return fmt.Errorf("update rule %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	logging.StoreDebug("deleted rule %s", id)
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
