package autonoma

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/autonoma-fleet/autonoma/internal/agents"
	"github.com/autonoma-fleet/autonoma/internal/runtime"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/policy"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// InterferenceMessage is the reply given when a run cannot complete.
const InterferenceMessage = runtime.InterferenceMessage

// HistoryLimit caps the anomaly summaries carried from one reading to the next.
const HistoryLimit = 20

// TranscriptLimit caps the messages carried from one reading to the next.
const TranscriptLimit = 50

// Engine is the high-level entry point of the Autonoma library.
// It wires the five diagnostic nodes, the transition guard and both
// orchestration designs, and is safe for concurrent use.
type Engine struct {
	primary *runtime.Engine
	chat    *runtime.Engine
	guard   *policy.Guard
	logger  *slog.Logger
}

type settings struct {
	design      string
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	generator   ports.TextGenerator
	scheduler   ports.Scheduler
	audit       ports.AuditSink
	insights    ports.InsightSink
	policy      *policy.Policy
	nodeTimeout time.Duration
	tracer      trace.Tracer
	now         func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*settings)

// WithDesign selects the design used by Run: "deterministic" (default) or
// "conversational". Chat always uses the conversational design.
func WithDesign(name string) Option {
	return func(s *settings) { s.design = name }
}

// WithLogger sets a structured logger for the engine, guard and nodes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) { s.hooks = hooks }
}

// WithTextGenerator sets the generator used by conversational engagement.
func WithTextGenerator(g ports.TextGenerator) Option {
	return func(s *settings) { s.generator = g }
}

// WithScheduler sets the service-center boundary.
func WithScheduler(sc ports.Scheduler) Option {
	return func(s *settings) { s.scheduler = sc }
}

// WithAuditSink receives every transition decision.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(s *settings) { s.audit = sink }
}

// WithInsightSink receives root-cause insights.
func WithInsightSink(sink ports.InsightSink) Option {
	return func(s *settings) { s.insights = sink }
}

// WithPolicy replaces the default transition allow-list.
func WithPolicy(p *policy.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithNodeTimeout bounds each node execution.
func WithNodeTimeout(d time.Duration) Option {
	return func(s *settings) { s.nodeTimeout = d }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithClock sets the clock used by nodes (message timestamps, booking dates).
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New initializes an Engine. Collaborators that are not provided fall back
// to the documented degraded behavior: no generator means the AI-offline
// alert, no scheduler means bookings fail and no slots are offered.
func New(opts ...Option) (*Engine, error) {
	s := &settings{
		design:      runtime.DesignDeterministic,
		nodeTimeout: runtime.DefaultNodeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.policy == nil {
		s.policy = policy.Default()
	}

	design, err := runtime.DesignByName(s.design)
	if err != nil {
		return nil, err
	}

	guardOpts := []policy.GuardOption{policy.WithLogger(s.logger)}
	if s.audit != nil {
		guardOpts = append(guardOpts, policy.WithAuditSink(s.audit))
	}
	guard := policy.NewGuard(s.policy, guardOpts...)

	primary, err := s.build(design, guard)
	if err != nil {
		return nil, err
	}
	chat := primary
	if design.Name != runtime.DesignConversational {
		if chat, err = s.build(runtime.Conversational(), guard); err != nil {
			return nil, err
		}
	}

	return &Engine{primary: primary, chat: chat, guard: guard, logger: s.logger}, nil
}

func (s *settings) build(design runtime.Design, guard runtime.Guard) (*runtime.Engine, error) {
	agentOpts := []agents.Option{agents.WithLogger(s.logger)}
	if s.now != nil {
		agentOpts = append(agentOpts, agents.WithClock(s.now))
	}
	nodes := []runtime.Node{
		agents.NewDataAnalysis(agentOpts...),
		agents.NewDiagnosis(agentOpts...),
		agents.NewCustomerEngagement(design.Engagement, s.generator, agentOpts...),
		agents.NewScheduling(s.scheduler, design.AutoBook, agentOpts...),
		agents.NewRootCauseAnalysis(s.insights, agentOpts...),
	}

	engOpts := []runtime.Option{
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithNodeTimeout(s.nodeTimeout),
	}
	if s.tracer != nil {
		engOpts = append(engOpts, runtime.WithTracer(s.tracer))
	}

	eng, err := runtime.NewEngine(design, guard, nodes, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("build %s design: %w", design.Name, err)
	}
	return eng, nil
}

// DesignName returns the name of the design used by Run.
func (e *Engine) DesignName() string { return e.primary.Design().Name }

// Policy returns the transition allow-list enforced by the engine.
func (e *Engine) Policy() *policy.Policy { return e.guard.Policy() }

// Guard returns the transition guard, for checking edges outside a run.
func (e *Engine) Guard() *policy.Guard { return e.guard }

// Run executes one run of the configured design. See runtime.Engine.Run for
// the outcome contract: only a canceled context returns an error.
func (e *Engine) Run(ctx context.Context, initial *domain.State) (*domain.State, error) {
	return e.primary.Run(ctx, initial)
}

// Diagnose runs the configured design on a single reading.
func (e *Engine) Diagnose(ctx context.Context, vehicleID string, data domain.Sample) (*domain.State, error) {
	return e.primary.Run(ctx, domain.NewState(vehicleID, data))
}

// Chat appends a driver message to prev and runs the conversational design
// on it. prev is typically the stored record of the vehicle; it is not
// modified.
func (e *Engine) Chat(ctx context.Context, prev *domain.State, message string) (*domain.State, error) {
	if prev == nil {
		return nil, fmt.Errorf("chat: nil record")
	}
	next := prev.Clone()
	next.Error = ""
	// Booking signals belong to the turn that raised them.
	next.ShowBookingUI = false
	next.AvailableSlots = nil
	next.BookingIntent = nil
	next.Messages = append(next.Messages, domain.Message{Sender: domain.SenderUser, Content: message})
	return e.chat.Run(ctx, next)
}

// NextReading builds the entry record for a new telemetry sample, carrying
// the newest TranscriptLimit messages of prev and a summary of its outcome
// into History.
func NextReading(prev *domain.State, vehicleID string, data domain.Sample) *domain.State {
	next := domain.NewState(vehicleID, data)
	if prev == nil {
		return next
	}
	next.History = append(next.History, prev.Clone().History...)
	entry := map[string]any{
		"run_id":           prev.RunID,
		"anomaly_detected": prev.AnomalyDetected,
	}
	if prev.AnomalyDetected {
		entry["anomaly_reason"] = prev.AnomalyReason
		entry["severity"] = string(prev.Severity)
	}
	next.History = append(next.History, entry)
	if len(next.History) > HistoryLimit {
		next.History = next.History[len(next.History)-HistoryLimit:]
	}
	carried := prev.Messages
	if len(carried) > TranscriptLimit {
		carried = carried[len(carried)-TranscriptLimit:]
	}
	next.Messages = append(next.Messages, carried...)
	next.BookingID = prev.BookingID
	return next
}
