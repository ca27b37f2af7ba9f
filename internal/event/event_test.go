package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_StableAcrossKeyOrder(t *testing.T) {
	a := map[string]any{"agent": map[string]any{"id": "a"}, "rule": map[string]any{"id": "1"}}
	b := map[string]any{"rule": map[string]any{"id": "1"}, "agent": map[string]any{"id": "a"}}

	assert.Equal(t, Digest(a), Digest(b))
	assert.Len(t, Digest(a), 64)
}

func TestDigest_DistinguishesContent(t *testing.T) {
	a := map[string]any{"x": 1}
	b := map[string]any{"x": 2}
	assert.NotEqual(t, Digest(a), Digest(b))
}

func TestNew_Defaults(t *testing.T) {
	fields := map[string]any{"k": "v"}

	ev := New(fields, time.Time{}, "")
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, Digest(fields), ev.ID)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ev2 := New(fields, ts, "e1")
	assert.Equal(t, ts, ev2.Timestamp)
	assert.Equal(t, "e1", ev2.ID)
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00+02:00", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00.500000", time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.True(t, got.Equal(tc.want), "input %q: got %v, want %v", tc.in, got, tc.want)
	}

	_, err := ParseTimestamp("not a time")
	assert.Error(t, err)
}

func TestFromRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ev, err := FromRecord(map[string]any{"timestamp": "2024-03-01T10:00:00Z", "k": "v"}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ev.Timestamp)

	// Missing timestamp defaults to now.
	ev, err = FromRecord(map[string]any{"k": "v"}, now)
	require.NoError(t, err)
	assert.Equal(t, now, ev.Timestamp)

	// Unparseable timestamp is an error in strict mode.
	_, err = FromRecord(map[string]any{"timestamp": "garbage"}, now)
	assert.Error(t, err)
}

func TestFromRecordLenient(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ev, fellBack := FromRecordLenient(map[string]any{"timestamp": "garbage"}, now)
	assert.True(t, fellBack)
	assert.Equal(t, now, ev.Timestamp)

	ev, fellBack = FromRecordLenient(map[string]any{"timestamp": "2024-03-01T10:00:00Z"}, now)
	assert.False(t, fellBack)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ev.Timestamp)
}

func TestParseJSONL(t *testing.T) {
	input := `
# comment line
{"rule": {"id": "5710"}, "agent": {"id": "a"}}

{"rule": {"id": "5715"}}
`
	records, err := ParseJSONL(input)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0]["agent"].(map[string]any)["id"])
}

func TestParseJSONL_Empty(t *testing.T) {
	records, err := ParseJSONL("   \n\n")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseJSONL_Errors(t *testing.T) {
	_, err := ParseJSONL(`{"ok": true}` + "\n" + `{broken`)
	require.Error(t, err)
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, 2, shape.Line)

	_, err = ParseJSONL(`[1, 2, 3]`)
	require.Error(t, err)
	require.ErrorAs(t, err, &shape)
	assert.Contains(t, shape.Msg, "expected JSON object")
}
