package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	inPattern       = regexp.MustCompile(`^(.+?)\s+in\s*\[(.*)\]$`)
	containsPattern = regexp.MustCompile(`^contains\s*\(\s*(.+?)\s*,\s*(.+?)\s*\)$`)
	regexPattern    = regexp.MustCompile(`^regex\s*\(\s*(.+?)\s*,\s*(.+?)\s*\)$`)
)

// Parse compiles a where expression into an Expr. The operator is
// recognized lexically in priority order: contains(...), regex(...),
// "in [...]", !=, ==. Anything else is a parse error, as is an empty or
// whitespace-only expression.
func Parse(expression string) (*Expr, error) {
	expression = strings.TrimSpace(expression)

	if expression == "" {
		return nil, fmt.Errorf("empty where expression")
	}

	switch {
	case strings.HasPrefix(expression, "contains"):
		return parseContains(expression)
	case strings.HasPrefix(expression, "regex"):
		return parseRegex(expression)
	case inPattern.MatchString(expression):
		return parseIn(expression)
	case strings.Contains(expression, "!="):
		return parseComparison(expression, OpNeq, "!=")
	case strings.Contains(expression, "=="):
		return parseComparison(expression, OpEq, "==")
	default:
		return nil, fmt.Errorf("unsupported expression syntax: %s", expression)
	}
}

// parseComparison handles == and != expressions.
func parseComparison(expression string, op Op, token string) (*Expr, error) {
	parts := strings.SplitN(expression, token, 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid %s expression: %s", token, expression)
	}

	path := strings.TrimSpace(parts[0])
	valueStr := strings.TrimSpace(parts[1])
	if path == "" || valueStr == "" {
		return nil, fmt.Errorf("invalid %s expression: %s", token, expression)
	}

	return &Expr{
		Op:      op,
		Path:    path,
		Literal: parseLiteral(valueStr),
		Source:  expression,
	}, nil
}

// parseIn handles list membership: path in [lit, lit, ...].
func parseIn(expression string) (*Expr, error) {
	m := inPattern.FindStringSubmatch(expression)
	if m == nil {
		return nil, fmt.Errorf("invalid 'in' expression: %s", expression)
	}

	path := strings.TrimSpace(m[1])
	itemsStr := strings.TrimSpace(m[2])
	if path == "" || itemsStr == "" {
		return nil, fmt.Errorf("invalid 'in' expression: %s", expression)
	}

	var list []any
	for _, item := range strings.Split(itemsStr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		list = append(list, parseLiteral(item))
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("invalid 'in' expression: %s", expression)
	}

	return &Expr{Op: OpIn, Path: path, List: list, Source: expression}, nil
}

// parseContains handles contains(path, "text").
func parseContains(expression string) (*Expr, error) {
	m := containsPattern.FindStringSubmatch(expression)
	if m == nil {
		return nil, fmt.Errorf("invalid contains expression: %s", expression)
	}

	path := strings.TrimSpace(m[1])
	search, ok := parseLiteral(strings.TrimSpace(m[2])).(string)
	if !ok {
		return nil, fmt.Errorf("contains search value must be a string: %s", expression)
	}

	return &Expr{Op: OpContains, Path: path, Search: search, Source: expression}, nil
}

// parseRegex handles regex(path, "pattern"). The pattern is compiled
// here so an invalid pattern fails at rule-compile time, not during
// event processing.
func parseRegex(expression string) (*Expr, error) {
	m := regexPattern.FindStringSubmatch(expression)
	if m == nil {
		return nil, fmt.Errorf("invalid regex expression: %s", expression)
	}

	path := strings.TrimSpace(m[1])
	patternSrc, ok := parseLiteral(strings.TrimSpace(m[2])).(string)
	if !ok {
		return nil, fmt.Errorf("regex pattern must be a string: %s", expression)
	}

	pattern, err := regexp.Compile(patternSrc)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %v", patternSrc, err)
	}

	return &Expr{
		Op:         OpRegex,
		Path:       path,
		Pattern:    pattern,
		PatternSrc: patternSrc,
		Source:     expression,
	}, nil
}

// parseLiteral turns a literal token into its value. Quoted strings
// (single or double), booleans (lowercase), null/none, integers and
// decimals are recognized; a bare word falls back to its string form.
func parseLiteral(s string) any {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	} else if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	return s
}
