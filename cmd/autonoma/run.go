package main

import (
	"encoding/json"
	"fmt"

	"github.com/autonoma-fleet/autonoma/internal/presentation/tui"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/telemetry"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Diagnose a single telemetry reading",
	Long: `Runs the workflow once on the reading given with --data and prints the
resulting vehicle record.

Example:
  autonoma run --vehicle EV-8823-X --data '{"battery_temperature": 75}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		vin, _ := cmd.Flags().GetString("vehicle")
		data, _ := cmd.Flags().GetString("data")
		asJSON, _ := cmd.Flags().GetBool("json")

		raw := map[string]any{}
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return fmt.Errorf("--data must be a JSON object: %w", err)
		}

		app, err := buildApp(cmd.Context(), cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		sample, err := telemetry.Decode(raw)
		if err != nil {
			app.Logger.Warn("malformed readings defaulted to 0", "err", err)
		}
		_, state, err := app.Diagnose(cmd.Context(), vin, sample)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		text, err := renderer(cmd)(tui.Report(state))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("vehicle", "EV-8823-X", "Vehicle identifier")
	runCmd.Flags().String("data", "{}", "Telemetry reading as a JSON object")
	runCmd.Flags().Bool("json", false, "Print the record as JSON")
}
