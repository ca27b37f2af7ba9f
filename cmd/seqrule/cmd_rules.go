package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seqrule/internal/rule"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage rules in the configured store",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rules, err := st.List()
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			fmt.Println("no rules")
			return nil
		}
		for _, r := range rules {
			fmt.Printf("%s\t%q\t%d steps\twithin %ds\n", r.ID, r.Name, len(r.Sequence), r.WithinSeconds)
		}
		return nil
	},
}

var rulesGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print one rule as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		r, err := st.Get(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	},
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create [rule-file]",
	Short: "Validate a rule file and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadRuleFile(args[0])
		if err != nil {
			return err
		}
		if _, err := rule.Compile(doc); err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Create(doc); err != nil {
			return err
		}
		fmt.Printf("created rule %s\n", doc.ID)
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted rule %s\n", args[0])
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesGetCmd)
	rulesCmd.AddCommand(rulesCreateCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
}
