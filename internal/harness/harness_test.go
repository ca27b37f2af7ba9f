package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seqrule/internal/rule"
)

func testRule() rule.Rule {
	return rule.Rule{
		ID:            "bf-1",
		Name:          "Failed logins then success",
		By:            []string{"agent.id"},
		WithinSeconds: 120,
		Sequence: []rule.Step{
			{As: "fail", Where: `rule.id == "5710"`},
			{As: "success", Where: `rule.id == "5715"`},
		},
	}
}

func record(agent, ruleID, timestamp string) map[string]any {
	r := map[string]any{
		"agent": map[string]any{"id": agent},
		"rule":  map[string]any{"id": ruleID},
	}
	if timestamp != "" {
		r["timestamp"] = timestamp
	}
	return r
}

func TestRun_Batch(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := Run(testRule(), []map[string]any{
		record("a", "5710", "2024-03-01T10:00:00Z"),
		record("a", "5715", "2024-03-01T10:00:30Z"),
		record("b", "5710", "2024-03-01T10:00:40Z"),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "bf-1", result.Rule.ID)
	assert.Equal(t, 2, result.Rule.Steps)
	assert.Equal(t, 3, result.EventsProcessed)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, "a", m.CorrelationKey)
	assert.Len(t, m.MatchedEventIDs, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC), m.Timestamp)
}

func TestRun_NoMatchesIsEmptyNotNil(t *testing.T) {
	result, err := Run(testRule(), []map[string]any{
		record("a", "9999", "2024-03-01T10:00:00Z"),
	}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
}

func TestRun_AbsentTimestampsDefaultToNow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := Run(testRule(), []map[string]any{
		record("a", "5710", ""),
		record("a", "5715", ""),
	}, now)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, now, result.Matches[0].Timestamp)
}

func TestRun_BadRecordCitesIndex(t *testing.T) {
	_, err := Run(testRule(), []map[string]any{
		record("a", "5710", "2024-03-01T10:00:00Z"),
		record("a", "5715", "not-a-timestamp"),
	}, time.Now())
	require.Error(t, err)

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Index)
}

func TestRun_CompileErrorSurfaces(t *testing.T) {
	r := testRule()
	r.Sequence[0].Where = "garbage expression"

	_, err := Run(r, nil, time.Now())
	require.Error(t, err)

	var perr *rule.PredicateError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fail", perr.Alias)
}
