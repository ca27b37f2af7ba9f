package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seqrule/internal/rule"
)

func sampleRule(id string) rule.Rule {
	return rule.Rule{
		ID:            id,
		Name:          "Login then file access",
		By:            []string{"agent.id"},
		WithinSeconds: 60,
		Sequence: []rule.Step{
			{As: "login", Where: `event.type == "login"`},
			{As: "access", Where: `event.type == "file_access"`},
		},
		Output: &rule.Output{
			TimestampRef: "access",
			Format:       "[{timestamp}] [{name}]",
		},
	}
}

// exercise runs the CRUD contract shared by both backends.
func exercise(t *testing.T, s Store) {
	t.Helper()

	rules, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, rules)

	r1 := sampleRule("seq-1")
	require.NoError(t, s.Create(r1))

	err = s.Create(r1)
	require.ErrorIs(t, err, ErrRuleExists)

	got, err := s.Get("seq-1")
	require.NoError(t, err)
	if diff := cmp.Diff(r1, got); diff != "" {
		t.Errorf("rule round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Get("missing")
	require.ErrorIs(t, err, ErrRuleNotFound)

	r2 := sampleRule("seq-2")
	require.NoError(t, s.Create(r2))

	rules, err = s.List()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "seq-1", rules[0].ID)
	assert.Equal(t, "seq-2", rules[1].ID)

	// In-place update.
	r1.Name = "Renamed"
	require.NoError(t, s.Update("seq-1", r1))
	got, err = s.Get("seq-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	// Update with a changed id re-keys the rule.
	r3 := sampleRule("seq-3")
	require.NoError(t, s.Update("seq-2", r3))
	_, err = s.Get("seq-2")
	require.ErrorIs(t, err, ErrRuleNotFound)
	got, err = s.Get("seq-3")
	require.NoError(t, err)
	assert.Equal(t, "seq-3", got.ID)

	err = s.Update("missing", r3)
	require.ErrorIs(t, err, ErrRuleNotFound)

	require.NoError(t, s.Delete("seq-1"))
	err = s.Delete("seq-1")
	require.ErrorIs(t, err, ErrRuleNotFound)

	rules, err = s.List()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "seq-3", rules[0].ID)
}
