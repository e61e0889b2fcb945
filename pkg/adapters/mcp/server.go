// Package mcp exposes the diagnostics engine as a Model Context Protocol
// server, so assistants can run diagnostics and query the transition policy.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/telemetry"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/policy"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/autonoma-fleet/autonoma/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PolicyURI is the resource holding the transition allow-list.
const PolicyURI = "autonoma://policy"

// DiagnosticsReport is the structured result of run_diagnostics.
type DiagnosticsReport struct {
	State *domain.State `json:"state" jsonschema_description:"The vehicle record after the run"`
	Reply string        `json:"reply,omitempty" jsonschema_description:"Newest customer-facing message"`
}

// TransitionCheck is the structured result of check_transition.
type TransitionCheck struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Allowed bool   `json:"allowed" jsonschema_description:"Whether the allow-list permits the edge"`
}

// Engine is the part of the autonoma facade the MCP server drives.
type Engine interface {
	Run(ctx context.Context, initial *domain.State) (*domain.State, error)
	Policy() *policy.Policy
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	sessions  *session.Manager
	insights  ports.InsightStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithInsights enables the list_insights tool.
func WithInsights(store ports.InsightStore) Option {
	return func(s *Server) { s.insights = store }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		logger:    slog.Default(),
		mcpServer: server.NewMCPServer("autonoma-mcp", strings.TrimSpace(autonoma.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("run_diagnostics",
		mcp.WithDescription("Run the diagnostic workflow on one telemetry reading of a vehicle and store the resulting record."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle identifier, e.g. EV-8823-X")),
		mcp.WithString("current_data", mcp.Required(), mcp.Description(`JSON object of sensor readings, e.g. {"battery_temperature": 75}`)),
		mcp.WithOutputSchema[DiagnosticsReport](),
	), mcp.NewStructuredToolHandler(s.handleRunDiagnostics))

	s.mcpServer.AddTool(mcp.NewTool("check_transition",
		mcp.WithDescription("Report whether the policy allow-list permits a transition between two workflow nodes."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node, e.g. data_analysis")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node, e.g. diagnosis")),
		mcp.WithOutputSchema[TransitionCheck](),
	), mcp.NewStructuredToolHandler(s.handleCheckTransition))

	s.mcpServer.AddTool(mcp.NewTool("list_insights",
		mcp.WithDescription("List the newest manufacturing insights produced by root cause analysis."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of insights (default 10)")),
	), s.handleListInsights)
}

func (s *Server) handleRunDiagnostics(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (DiagnosticsReport, error) {
	vin, _ := args["vehicle_id"].(string)
	if vin = strings.TrimSpace(vin); vin == "" {
		return DiagnosticsReport{}, errors.New("vehicle_id is required")
	}

	raw := map[string]any{}
	if data, ok := args["current_data"].(string); ok && data != "" {
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return DiagnosticsReport{}, fmt.Errorf("current_data must be a JSON object: %w", err)
		}
	}
	sample, err := telemetry.Decode(raw)
	if err != nil {
		s.logger.Warn("MCP: malformed readings defaulted to 0", "vehicle_id", vin, "err", err)
	}

	carried := 0
	next, err := s.sessions.Turn(ctx, vin, func(ctx context.Context, prev *domain.State) (*domain.State, error) {
		initial := autonoma.NextReading(prev, vin, sample)
		carried = len(initial.Messages)
		return s.engine.Run(ctx, initial)
	})
	if err != nil {
		return DiagnosticsReport{}, fmt.Errorf("diagnostics failed: %w", err)
	}

	report := DiagnosticsReport{State: next}
	// Only messages appended by this run count as a reply.
	for i := len(next.Messages) - 1; i >= carried; i-- {
		if next.Messages[i].Sender != domain.SenderUser {
			report.Reply = next.Messages[i].Content
			break
		}
	}
	return report, nil
}

func (s *Server) handleCheckTransition(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (TransitionCheck, error) {
	source, _ := args["source"].(string)
	target, _ := args["target"].(string)
	return TransitionCheck{
		Source:  source,
		Target:  target,
		Allowed: s.engine.Policy().Allows(source, target),
	}, nil
}

func (s *Server) handleListInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.insights == nil {
		return mcp.NewToolResultError("insights are not configured"), nil
	}
	limit := request.GetInt("limit", 10)
	list, err := s.insights.ListInsights(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list insights failed: %v", err)), nil
	}
	if list == nil {
		list = []domain.Insight{}
	}
	jsonBytes, _ := json.Marshal(list)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(PolicyURI, "Transition allow-list",
		mcp.WithMIMEType("application/json"),
	), func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(map[string]any{"transitions": s.engine.Policy().Table()})
		if err != nil {
			return nil, fmt.Errorf("failed to encode policy: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      PolicyURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
