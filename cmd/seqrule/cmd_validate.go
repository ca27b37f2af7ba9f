package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"seqrule/internal/rule"
)

var validateCmd = &cobra.Command{
	Use:   "validate [rule-file...]",
	Short: "Compile rule files without loading them",
	Long: `Parses and compiles each YAML rule file, reporting shape and
predicate errors. Exits non-zero if any file fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		if err := validateFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rule files failed validation", failed, len(args))
	}
	return nil
}

func validateFile(path string) error {
	doc, err := loadRuleFile(path)
	if err != nil {
		return err
	}
	compiled, err := rule.Compile(doc)
	if err != nil {
		return err
	}
	fmt.Printf("  %s (%q): %d steps, window %s\n",
		compiled.ID, compiled.Name, compiled.StepCount(), compiled.Window)
	return nil
}

func loadRuleFile(path string) (rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rule.Rule{}, err
	}
	var doc rule.Rule
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rule.Rule{}, fmt.Errorf("parse YAML: %w", err)
	}
	return doc, nil
}
