package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/internal/cli"
	"github.com/autonoma-fleet/autonoma/internal/presentation/tui"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the chat, diagnose, scheduling and insight endpoints, the SSE diff
stream, the websocket telemetry feed and the Prometheus /metrics endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := buildApp(ctx, cmd, func(cfg *config.Config) {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
		})
		if err != nil {
			return err
		}
		defer app.Close()

		handler, err := app.Handler()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              app.Config.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("autonoma server listening", "address", srv.Addr, "version", autonoma.Version)
			serverErrors <- srv.ListenAndServe()
		}()

		if interactive(cmd) {
			tui.PrintBanner(cmd.OutOrStdout(), autonoma.Version)
		}

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			app.Logger.Info("shutdown started", "signal", ctx.Signal())
		}

		timeout := app.Config.Server.ShutdownTimeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("graceful shutdown did not complete", "timeout", timeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		app.Logger.Info("autonoma server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
