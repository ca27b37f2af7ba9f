package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ShapeError reports an ingest record that is not a JSON object, or a
// line that fails to parse at all. Line is 1-based.
type ShapeError struct {
	Line int
	Msg  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseJSONL parses newline-delimited JSON objects into raw records.
// Comment lines (starting with #) and blank lines are skipped. A line
// that is not valid JSON, or whose value is not an object, aborts the
// parse with a ShapeError naming the line.
func ParseJSONL(input string) ([]map[string]any, error) {
	var records []map[string]any

	if strings.TrimSpace(input) == "" {
		return records, nil
	}

	for i, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var value any
		if err := json.Unmarshal([]byte(line), &value); err != nil {
			return nil, &ShapeError{Line: i + 1, Msg: fmt.Sprintf("invalid JSON: %v", err)}
		}

		record, ok := value.(map[string]any)
		if !ok {
			return nil, &ShapeError{Line: i + 1, Msg: fmt.Sprintf("expected JSON object, got %T", value)}
		}
		records = append(records, record)
	}

	return records, nil
}
