// Package format renders completed sequence matches through a rule's
// output template.
package format

import (
	"strings"
	"time"
)

// TimestampLayout is how {timestamp} renders: seconds precision, UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Fields carries everything a template can reference.
type Fields struct {
	Timestamp      time.Time
	RuleID         string
	RuleName       string
	CorrelationKey string
	EventIDs       []string
}

// Render substitutes the supported placeholders into the template:
// {timestamp}, {name}, {events}, {correlation_key}, {rule_id}.
// Unknown placeholders are left literal. An empty template is replaced
// by the caller's default before reaching here.
func Render(template string, f Fields) string {
	r := strings.NewReplacer(
		"{timestamp}", f.Timestamp.UTC().Format(TimestampLayout),
		"{name}", f.RuleName,
		"{events}", strings.Join(f.EventIDs, ","),
		"{correlation_key}", f.CorrelationKey,
		"{rule_id}", f.RuleID,
	)
	return r.Replace(template)
}
