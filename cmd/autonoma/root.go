package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/autonoma-fleet/autonoma/internal/cli"
	"github.com/autonoma-fleet/autonoma/internal/presentation/tui"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autonoma",
	Short: "Autonoma runs predictive maintenance workflows over vehicle telemetry",
	Long: `Autonoma analyses vehicle telemetry, diagnoses anomalies, engages the driver,
schedules service appointments and feeds root cause insights back to manufacturing.
Every step transition is checked against an allow-list and audited.

Configuration comes from an optional YAML file (--config) and AUTONOMA_*
environment variables, e.g. AUTONOMA_LLM_PROVIDER=openai.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
}

// loadConfig reads the configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildApp loads the configuration, lets mutate adjust it and wires the app.
func buildApp(ctx context.Context, cmd *cobra.Command, mutate func(*config.Config)) (*cli.App, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cli.Build(ctx, cfg, logger)
}

// interactive reports whether the command writes to a terminal.
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && tui.IsTerminal(f)
}

// renderer picks glamour on terminals and plain markdown elsewhere.
func renderer(cmd *cobra.Command) tui.Renderer {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return tui.ForFile(f)
	}
	return tui.Plain
}
