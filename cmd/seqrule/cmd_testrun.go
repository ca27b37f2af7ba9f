package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"seqrule/internal/event"
	"seqrule/internal/harness"
)

var testJSONOutput bool

var testCmd = &cobra.Command{
	Use:   "test [rule-file] [events-file]",
	Short: "Run a rule against a JSONL event file",
	Long: `Compiles the rule and replays the events through a fresh engine.
The events file holds one JSON object per line; blank lines and lines
starting with # are skipped. Prints each match, or the full result as
JSON with --json.`,
	Args: cobra.ExactArgs(2),
	RunE: runTest,
}

func init() {
	testCmd.Flags().BoolVar(&testJSONOutput, "json", false, "print the full result as JSON")
}

func runTest(cmd *cobra.Command, args []string) error {
	doc, err := loadRuleFile(args[0])
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	records, err := event.ParseJSONL(string(data))
	if err != nil {
		return err
	}

	result, err := harness.Run(doc, records, time.Now().UTC())
	if err != nil {
		return err
	}

	if testJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("rule %s (%q): %d events, %d matches\n",
		result.Rule.ID, result.Rule.Name, result.EventsProcessed, len(result.Matches))
	for _, m := range result.Matches {
		fmt.Println(" ", m.Formatted)
	}
	return nil
}
