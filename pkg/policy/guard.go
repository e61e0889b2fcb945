package policy

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
)

// DefaultAgentName identifies the engine in audit records.
const DefaultAgentName = "workflow_engine"

// Guard validates proposed transitions against a Policy.
type Guard struct {
	policy  *Policy
	logger  *slog.Logger
	sink    ports.AuditSink
	agent   string
	timeout time.Duration
	now     func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the logger used for guard decisions.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// WithAuditSink forwards every decision to sink.
func WithAuditSink(sink ports.AuditSink) GuardOption {
	return func(g *Guard) { g.sink = sink }
}

// WithAgentName sets the agent name written to audit records.
func WithAgentName(name string) GuardOption {
	return func(g *Guard) { g.agent = name }
}

// WithAuditTimeout bounds each audit write. Defaults to 2s.
func WithAuditTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.timeout = d }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard over p. A nil policy means Default.
func NewGuard(p *Policy, opts ...GuardOption) *Guard {
	if p == nil {
		p = Default()
	}
	g := &Guard{
		policy:  p,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		agent:   DefaultAgentName,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the table the guard enforces.
func (g *Guard) Policy() *Policy { return g.policy }

// Check reports whether source→target may execute. It never blocks the
// caller on the audit sink for longer than the audit timeout, and audit
// failures do not change the decision.
func (g *Guard) Check(ctx context.Context, source, target string) bool {
	src := strings.ToLower(strings.TrimSpace(source))
	dst := strings.ToLower(strings.TrimSpace(target))

	var allowed bool
	switch {
	case !g.policy.HasSource(src):
		g.logger.Warn("transition from unknown source rejected", "source", src, "target", dst)
	case g.policy.Allows(src, dst):
		allowed = true
		g.logger.Info("transition allowed", "source", src, "target", dst)
	default:
		g.logger.Warn("transition blocked by policy", "source", src, "target", dst)
	}

	g.audit(ctx, src, dst, allowed)
	return allowed
}

func (g *Guard) audit(ctx context.Context, source, target string, allowed bool) {
	if g.sink == nil {
		return
	}
	status := domain.AuditBlocked
	if allowed {
		status = domain.AuditAllowed
	}
	rec := domain.AuditRecord{
		AgentName: g.agent,
		Source:    source,
		Target:    target,
		Status:    status,
		Timestamp: g.now().UTC(),
	}

	// The audit trail must outlive a canceled run.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("audit sink panicked", "panic", r)
		}
	}()
	if err := g.sink.Record(auditCtx, rec); err != nil {
		g.logger.Error("failed to record transition audit", "source", source, "target", target, "error", err)
	}
}
