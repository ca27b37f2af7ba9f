package extract

import "testing"

func TestExtract_Nested(t *testing.T) {
	fields := map[string]any{
		"agent": map[string]any{"id": "037"},
		"rule":  map[string]any{"id": "5710"},
		"data": map[string]any{
			"win": map[string]any{
				"eventdata": map[string]any{"status": "0x0"},
			},
		},
	}

	cases := []struct {
		name string
		path string
		def  any
		want any
	}{
		{"single hop", "agent.id", nil, "037"},
		{"sibling", "rule.id", nil, "5710"},
		{"deep", "data.win.eventdata.status", nil, "0x0"},
		{"missing leaf", "agent.name", nil, nil},
		{"missing root", "missing.path", nil, nil},
		{"missing with default", "missing.path", "default", "default"},
		{"empty path", "", "default", "default"},
		{"scalar intermediate", "agent.id.sub", nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(fields, tc.path, tc.def)
			if got != tc.want {
				t.Errorf("Extract(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestExtract_NilAndNonMap(t *testing.T) {
	if got := Extract(nil, "a.b", "d"); got != "d" {
		t.Errorf("nil fields: got %v, want d", got)
	}

	// Explicit null value is returned as-is, not replaced by the default.
	fields := map[string]any{"a": nil}
	if got := Extract(fields, "a", "d"); got != nil {
		t.Errorf("explicit null: got %v, want nil", got)
	}
}

func TestExtract_NoCoercion(t *testing.T) {
	fields := map[string]any{"n": 5}
	got := Extract(fields, "n", nil)
	if got != 5 {
		t.Errorf("got %v (%T), want int 5", got, got)
	}
}

func TestExtractMultiple(t *testing.T) {
	fields := map[string]any{
		"agent": map[string]any{"id": "a1"},
		"host":  map[string]any{"name": "web-01"},
	}

	out := ExtractMultiple(fields, []string{"agent.id", "host.name", "nope"}, "")
	if out["agent.id"] != "a1" || out["host.name"] != "web-01" || out["nope"] != "" {
		t.Errorf("unexpected result: %v", out)
	}
}
