package main

import (
	"fmt"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/internal/cli"
	"github.com/autonoma-fleet/autonoma/internal/presentation/tui"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file.csv]",
	Short: "Replay telemetry through the workflow",
	Long: `Streams a telemetry CSV (or the synthetic generator when no file is given)
through the workflow, printing one line per reading and every new message.
Stops after --limit readings or on Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		limit, _ := cmd.Flags().GetInt("limit")
		app, err := buildApp(ctx, cmd, func(cfg *config.Config) {
			if len(args) > 0 {
				cfg.Telemetry.File = args[0]
			}
			if cmd.Flags().Changed("interval") {
				cfg.Telemetry.Interval, _ = cmd.Flags().GetDuration("interval")
			}
			if v, _ := cmd.Flags().GetString("vehicle"); v != "" {
				cfg.Telemetry.VehicleID = v
			}
		})
		if err != nil {
			return err
		}
		defer app.Close()

		src, err := app.TelemetrySource()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if interactive(cmd) {
			tui.PrintBanner(out, autonoma.Version)
		}
		vin := app.Config.Telemetry.VehicleID

		var last *domain.State
		n, err := app.Replay(ctx, src, vin, limit, func(sample domain.Sample, prev, next *domain.State) error {
			last = next
			status := "ok"
			if next.AnomalyDetected {
				status = fmt.Sprintf("%s: %s", next.Severity, next.AnomalyReason)
			}
			fmt.Fprintf(out, "%s temp=%.1f vib=%.1f rpm=%.0f -> %s\n",
				vin,
				sample.Get(domain.SensorBatteryTemperature),
				sample.Get(domain.SensorVibrationLevel),
				sample.Get(domain.SensorMotorRPM),
				status)
			for _, m := range next.Messages[len(prev.Messages):] {
				fmt.Fprintf(out, "    %s: %s\n", m.Sender, m.Content)
			}
			return nil
		})
		if err = cli.HandleExecutionError(err); err != nil {
			return err
		}

		if ctx.Signal() != nil {
			fmt.Fprintln(out)
		}
		cli.PrintSystemMessage(out, "Replayed %d readings for %s.", n, vin)
		if last != nil {
			text, err := renderer(cmd)(tui.Report(last))
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Int("limit", 0, "Stop after N readings (0: until interrupted)")
	replayCmd.Flags().Duration("interval", 0, "Delay between readings (overrides telemetry.interval)")
	replayCmd.Flags().String("vehicle", "", "Vehicle identifier (overrides telemetry.vehicle_id)")
}
