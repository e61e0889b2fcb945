package main

import (
	"fmt"

	"github.com/autonoma-fleet/autonoma/internal/presentation/graph"
	"github.com/autonoma-fleet/autonoma/internal/runtime"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of a design checked against the
allow-list. With --vehicle, the path of the last stored run is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		name := cfg.Engine.Design
		if cmd.Flags().Changed("design") {
			name, _ = cmd.Flags().GetString("design")
		}
		design, err := runtime.DesignByName(name)
		if err != nil {
			return err
		}
		p, err := loadPolicy(cmd)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if vin, _ := cmd.Flags().GetString("vehicle"); vin != "" {
			app, err := buildApp(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer app.Close()
			state, err := app.Sessions.Load(cmd.Context(), vin)
			if err != nil {
				return fmt.Errorf("no stored run for %s: %w", vin, err)
			}
			overlay = graph.OverlayFor(state)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(design, p, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("design", "", "Design to draw (deterministic | conversational)")
	graphCmd.Flags().String("vehicle", "", "Highlight the last run of this vehicle (needs a persistent store)")
}
