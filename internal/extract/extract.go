// Package extract reads values out of nested event field maps using
// dotted path notation ("agent.id", "data.win.eventdata.status").
// Traversal only descends through map nodes; anything else yields the
// caller-supplied default.
package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Extract returns the value at the dotted path inside fields, or def if
// the path is empty, any segment is absent, or an intermediate value is
// not a map. No type coercion is performed and extraction never fails.
func Extract(fields map[string]any, path string, def any) any {
	if path == "" || fields == nil {
		return def
	}

	var value any = fields
	for _, key := range strings.Split(path, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return def
		}
		value, ok = m[key]
		if !ok {
			return def
		}
	}
	return value
}

// ExtractMultiple extracts several paths at once, mapping each path to
// its extracted value (or def when missing).
func ExtractMultiple(fields map[string]any, paths []string, def any) map[string]any {
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		out[p] = Extract(fields, p, def)
	}
	return out
}

// Stringify renders an extracted value in its textual form, used for
// correlation keys and substring/regex matching. Integral floats render
// without a decimal point so JSON-decoded numbers read the way rule
// authors write them.
func Stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprint(v)
	}
}
