package rule

import (
	"strconv"
	"time"

	"seqrule/internal/dsl"
)

// CompiledStep is a step with its where expression compiled to a
// predicate. Safe for concurrent use.
type CompiledStep struct {
	Index int
	Alias string
	Where string

	expr *dsl.Expr
}

// Matches evaluates the step's predicate against an event field map.
// Evaluation never fails; runtime errors count as a non-match.
func (s *CompiledStep) Matches(fields map[string]any) bool {
	return s.expr.Eval(fields)
}

// CompiledRule is a validated rule with every step predicate compiled.
// CompiledRules are immutable and may be shared across engine instances.
type CompiledRule struct {
	ID            string
	Name          string
	By            []string
	WithinSeconds int
	Window        time.Duration
	Steps         []*CompiledStep

	// OutputFormat is the match template; TimestampRef names the step
	// alias whose timestamp the template refers to.
	OutputFormat string
	TimestampRef string
}

// StepCount returns the number of steps in the sequence.
func (r *CompiledRule) StepCount() int { return len(r.Steps) }

// Compile validates a rule document and compiles each step's predicate.
// Failures are a *ValidationError for shape problems or a
// *PredicateError citing the step alias for unparseable expressions.
func Compile(r Rule) (*CompiledRule, error) {
	if r.ID == "" {
		return nil, &ValidationError{Field: "id", Msg: "required"}
	}
	if r.Name == "" {
		return nil, &ValidationError{Field: "name", Msg: "required"}
	}
	if r.WithinSeconds <= 0 {
		return nil, &ValidationError{Field: "within_seconds", Msg: "must be a positive integer"}
	}
	if len(r.Sequence) == 0 {
		return nil, &ValidationError{Field: "sequence", Msg: "must be a non-empty list"}
	}
	for i, by := range r.By {
		if by == "" {
			return nil, &ValidationError{Field: "by", Msg: "empty path at index " + itoa(i)}
		}
	}

	seen := make(map[string]bool, len(r.Sequence))
	steps := make([]*CompiledStep, 0, len(r.Sequence))
	for i, step := range r.Sequence {
		if step.As == "" {
			return nil, &ValidationError{Field: "sequence[" + itoa(i) + "].as", Msg: "required"}
		}
		if seen[step.As] {
			return nil, &ValidationError{Field: "sequence[" + itoa(i) + "].as", Msg: "duplicate alias " + step.As}
		}
		seen[step.As] = true

		expr, err := dsl.Parse(step.Where)
		if err != nil {
			return nil, &PredicateError{Alias: step.As, Err: err}
		}

		steps = append(steps, &CompiledStep{
			Index: i,
			Alias: step.As,
			Where: step.Where,
			expr:  expr,
		})
	}

	compiled := &CompiledRule{
		ID:            r.ID,
		Name:          r.Name,
		By:            append([]string(nil), r.By...),
		WithinSeconds: r.WithinSeconds,
		Window:        time.Duration(r.WithinSeconds) * time.Second,
		Steps:         steps,
		OutputFormat:  DefaultOutputFormat,
	}
	if r.Output != nil {
		if r.Output.Format != "" {
			compiled.OutputFormat = r.Output.Format
		}
		compiled.TimestampRef = r.Output.TimestampRef
	}
	return compiled, nil
}

func itoa(i int) string { return strconv.Itoa(i) }
