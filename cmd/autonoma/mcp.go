package main

import (
	"fmt"
	"log"
	"os"

	"github.com/autonoma-fleet/autonoma/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server, exposing the run_diagnostics,
check_transition and list_insights tools and the autonoma://policy resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app, err := buildApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()
		srv := app.MCP()

		switch transport {
		case "stdio":
			// Logs must not corrupt JSON-RPC on stdout.
			log.SetOutput(os.Stderr)
			app.Logger.Info("starting autonoma MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			addr := fmt.Sprintf(":%d", port)
			return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port))
		default:
			return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().Int("port", 8081, "Port for the sse transport")
}
