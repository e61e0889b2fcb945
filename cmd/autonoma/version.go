package main

import (
	"fmt"
	"strings"

	"github.com/autonoma-fleet/autonoma"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of autonoma",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autonoma version %s\n", strings.TrimSpace(autonoma.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
