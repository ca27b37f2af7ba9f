// Package dsl implements the where-expression language used by sequence
// rule steps. An expression compiles to a small predicate AST that is
// evaluated against an event's field map.
//
// Supported operators:
//   - ==                 equality (rule.id == "60122")
//   - !=                 inequality (status != "success")
//   - in                 list membership (rule.id in ["5710", "5715"])
//   - contains(path, s)  substring search
//   - regex(path, p)     regex matching, pattern compiled at parse time
package dsl

import (
	"regexp"
	"strings"

	"seqrule/internal/extract"
)

// Op identifies the top-level operator of a compiled expression.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpIn
	OpContains
	OpRegex
)

// String returns the surface-syntax name of the operator.
func (op Op) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	case OpRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// Expr is a compiled where-expression. Exactly one operator applies;
// which payload fields are populated depends on Op:
//
//	Eq/Neq   -> Literal
//	In       -> List
//	Contains -> Search
//	Regex    -> Pattern (compiled), PatternSrc
//
// An Expr is immutable after parsing and safe for concurrent use.
type Expr struct {
	Op      Op
	Path    string
	Literal any
	List    []any
	Search  string

	Pattern    *regexp.Regexp
	PatternSrc string

	// Source is the original expression text, kept for error messages
	// and state summaries.
	Source string
}

// absent is the sentinel for a path that does not resolve in the event.
// It is distinct from an explicit null field value and equals no literal.
type absent struct{}

// Eval evaluates the expression against an event field map. Evaluation
// is total: any unexpected runtime failure is trapped and reported as a
// non-match.
func (e *Expr) Eval(fields map[string]any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
		}
	}()

	got := extract.Extract(fields, e.Path, absent{})

	switch e.Op {
	case OpEq:
		return valueEquals(got, e.Literal)
	case OpNeq:
		return !valueEquals(got, e.Literal)
	case OpIn:
		for _, lit := range e.List {
			if valueEquals(got, lit) {
				return true
			}
		}
		return false
	case OpContains:
		if isMissing(got) {
			return false
		}
		return strings.Contains(extract.Stringify(got), e.Search)
	case OpRegex:
		if isMissing(got) {
			return false
		}
		return e.Pattern.MatchString(extract.Stringify(got))
	default:
		return false
	}
}

// isMissing reports whether the extracted value is absent or an explicit
// null. contains() and regex() treat both as non-matching.
func isMissing(v any) bool {
	if v == nil {
		return true
	}
	_, miss := v.(absent)
	return miss
}

// valueEquals compares an extracted value against a literal using value
// equality. Numbers compare numerically across int/float representations
// (JSON decodes numbers as float64, YAML as int), but no coercion happens
// across kinds: 5 == "5" is false. The absent sentinel equals nothing,
// so an explicit null literal only matches an explicitly-null field.
func valueEquals(got, lit any) bool {
	if _, miss := got.(absent); miss {
		return false
	}
	if lit == nil || got == nil {
		return lit == nil && got == nil
	}

	if gf, ok := toFloat(got); ok {
		if lf, ok := toFloat(lit); ok {
			return gf == lf
		}
		return false
	}

	switch g := got.(type) {
	case string:
		l, ok := lit.(string)
		return ok && g == l
	case bool:
		l, ok := lit.(bool)
		return ok && g == l
	default:
		return false
	}
}

// toFloat widens any numeric Go value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

