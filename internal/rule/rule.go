// Package rule defines the declarative sequence-rule document and the
// compiler that turns it into fast predicate trees.
//
// A rule declares an ordered list of step predicates, a correlation key
// (the "by" field list), and a time window. On disk rules are YAML, one
// document per rule; the engine consumes the parsed in-memory form.
package rule

// Step is one named predicate within a rule's ordered sequence.
type Step struct {
	As    string `yaml:"as" json:"as"`
	Where string `yaml:"where" json:"where"`
}

// Output configures how a completed match is rendered.
type Output struct {
	TimestampRef string `yaml:"timestamp_ref,omitempty" json:"timestamp_ref,omitempty"`
	Format       string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Rule is the declarative sequence-rule document.
type Rule struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	By            []string `yaml:"by" json:"by"`
	WithinSeconds int      `yaml:"within_seconds" json:"within_seconds"`
	Sequence      []Step   `yaml:"sequence" json:"sequence"`
	Output        *Output  `yaml:"output,omitempty" json:"output,omitempty"`
}

// DefaultOutputFormat is used when a rule declares no output template.
const DefaultOutputFormat = "[{timestamp}] [{name}] [{events}]"
