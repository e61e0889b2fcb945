package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/autonoma-fleet/autonoma/pkg/policy"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the transition allow-list",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every permitted transition",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicy(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		table := p.Table()
		sources := make([]string, 0, len(table))
		for src := range table {
			sources = append(sources, src)
		}
		slices.Sort(sources)
		for _, src := range sources {
			fmt.Fprintf(out, "%-20s -> %s\n", src, strings.Join(table[src], ", "))
		}
		for _, n := range p.Unreachable() {
			fmt.Fprintf(out, "warning: %s is unreachable from start\n", n)
		}
		return nil
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <source> <target>",
	Short: "Check whether a transition is permitted",
	Long:  `Prints ALLOWED or BLOCKED. A blocked transition exits with status 1.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicy(cmd)
		if err != nil {
			return err
		}
		if p.Allows(args[0], args[1]) {
			fmt.Fprintf(cmd.OutOrStdout(), "ALLOWED %s -> %s\n", args[0], args[1])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "BLOCKED %s -> %s\n", args[0], args[1])
		return fmt.Errorf("transition %s -> %s is not permitted", args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyCheckCmd)
}

// loadPolicy returns the configured allow-list, or the built-in one.
func loadPolicy(cmd *cobra.Command) (*policy.Policy, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Policy.File == "" {
		return policy.Default(), nil
	}
	return policy.Load(cfg.Policy.File)
}
