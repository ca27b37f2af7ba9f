package rule

import "fmt"

// ValidationError reports a missing or ill-typed rule field. Compile-time
// only; the offending rule is rejected.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule: field %q: %s", e.Field, e.Msg)
}

// PredicateError reports a step whose where expression failed to parse,
// citing the step alias.
type PredicateError struct {
	Alias string
	Err   error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("invalid predicate for step %q: %v", e.Alias, e.Err)
}

func (e *PredicateError) Unwrap() error { return e.Err }
