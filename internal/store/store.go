// Package store persists rule definitions. Two backends are provided: a
// YAML file-per-rule directory (the default, friendly to git and to the
// directory watcher) and a single-file SQLite database.
package store

import (
	"errors"

	"seqrule/internal/rule"
)

var (
	// ErrRuleExists is returned by Create when the rule id is taken.
	ErrRuleExists = errors.New("rule already exists")

	// ErrRuleNotFound is returned when the requested rule id is absent.
	ErrRuleNotFound = errors.New("rule not found")
)

// Store is the rule persistence surface used by the server and the CLI.
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns every readable rule. Individual unreadable entries
	// are skipped, not fatal.
	List() ([]rule.Rule, error)

	// Get returns the rule with the given id, or ErrRuleNotFound.
	Get(id string) (rule.Rule, error)

	// Create persists a new rule. Fails with ErrRuleExists if the id is
	// already present.
	Create(r rule.Rule) error

	// Update replaces the rule stored under id. If the payload carries a
	// different id the rule is re-keyed and the old entry removed.
	// Fails with ErrRuleNotFound if id is absent.
	Update(id string, r rule.Rule) error

	// Delete removes the rule with the given id, or ErrRuleNotFound.
	Delete(id string) error

	// Close releases backend resources.
	Close() error
}
