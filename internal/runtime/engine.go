package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InterferenceMessage is appended to the transcript when a node fails.
const InterferenceMessage = "I'm encountering some interference. Please try again."

// DefaultNodeTimeout bounds a single node, collaborator calls included.
const DefaultNodeTimeout = 30 * time.Second

// Node is one executable pipeline step.
type Node interface {
	ID() domain.NodeID
	Run(ctx context.Context, s *domain.State) (domain.Update, error)
}

// Guard decides whether a transition may execute.
type Guard interface {
	Check(ctx context.Context, source, target string) bool
}

// Engine is the workflow interpreter. It holds only immutable configuration
// and is safe for concurrent runs.
type Engine struct {
	design      Design
	nodes       map[domain.NodeID]Node
	guard       Guard
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	tracer      trace.Tracer
	nodeTimeout time.Duration
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithTracer overrides the OpenTelemetry tracer (the global one by default).
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithNodeTimeout bounds each node execution. Zero disables the bound.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.nodeTimeout = d }
}

// NewEngine wires a design to its nodes. Every node the design can reach must
// be provided.
func NewEngine(design Design, guard Guard, nodes []Node, opts ...Option) (*Engine, error) {
	if guard == nil {
		return nil, errors.New("runtime: guard is required")
	}
	e := &Engine{
		design:      design,
		nodes:       make(map[domain.NodeID]Node, len(nodes)),
		guard:       guard,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer("github.com/autonoma-fleet/autonoma"),
		nodeTimeout: DefaultNodeTimeout,
	}
	for _, n := range nodes {
		e.nodes[n.ID()] = n
	}
	for _, id := range design.Executable() {
		if _, ok := e.nodes[id]; !ok {
			return nil, fmt.Errorf("runtime: design %q routes to %s but no node is registered", design.Name, id)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("design", design.Name)
	return e, nil
}

// Design returns the configured design.
func (e *Engine) Design() Design { return e.design }

// Run executes one run from START to END under a fresh run id. The input
// record is not modified.
//
// Blocked transitions and node failures end the run normally; the returned
// record carries the outcome. Only a canceled context yields an error, and
// then no record is returned.
func (e *Engine) Run(ctx context.Context, initial *domain.State) (*domain.State, error) {
	if initial == nil {
		return nil, errors.New("runtime: nil initial state")
	}
	state := initial.Clone()
	state.RunID = uuid.NewString()
	state.Path = nil
	started := time.Now()

	ctx, span := e.tracer.Start(ctx, "autonoma.run", trace.WithAttributes(
		attribute.String("vehicle.id", state.VehicleID),
		attribute.String("run.id", state.RunID),
		attribute.String("design", e.design.Name),
	))
	defer span.End()

	log := e.logger.With("run_id", state.RunID, "vehicle_id", state.VehicleID)
	log.Debug("run started")

	current := domain.NodeStart
	outcome := domain.OutcomeCompleted

	for {
		if err := ctx.Err(); err != nil {
			log.Warn("run canceled", "at", current, "error", err)
			e.emitRunEnd(ctx, state, domain.OutcomeCanceled, started)
			span.SetStatus(codes.Error, "canceled")
			return nil, err
		}

		next := e.design.Next(current, state)
		if !e.transition(ctx, state, current, next) {
			outcome = domain.OutcomeBlocked
			break
		}
		if next == domain.NodeEnd {
			break
		}

		update, err := e.execute(ctx, state, e.nodes[next])
		state = domain.Merge(state, update)
		state.Path = append(state.Path, next)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				continue
			}
			log.Error("node failed", "node", next, "error", err)
			state = domain.Merge(state, domain.Update{
				Error:    domain.Set(err.Error()),
				Messages: []domain.Message{{Sender: domain.SenderSystem, Content: InterferenceMessage}},
			})
			span.RecordError(err)
			outcome = domain.OutcomeFailed
			break
		}
		current = next
	}

	log.Info("run finished", "outcome", outcome, "path", state.Path, "severity", state.Severity)
	span.SetAttributes(attribute.String("run.outcome", string(outcome)))
	e.emitRunEnd(ctx, state, outcome, started)
	return state, nil
}

// transition asks the guard; edges to unregistered nodes are never taken.
func (e *Engine) transition(ctx context.Context, s *domain.State, from, to domain.NodeID) bool {
	allowed := e.guard.Check(ctx, string(from), string(to))
	if allowed && !to.IsMarker() {
		if _, ok := e.nodes[to]; !ok {
			e.logger.Error("transition to unregistered node", "source", from, "target", to)
			allowed = false
		}
	}
	e.emitTransition(ctx, s, from, to, allowed)
	return allowed
}

// execute runs a node with its timeout, turning panics into errors.
func (e *Engine) execute(ctx context.Context, s *domain.State, n Node) (update domain.Update, err error) {
	id := n.ID()
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}
	ctx, span := e.tracer.Start(ctx, "autonoma.node."+string(id))
	defer span.End()

	e.emitNodeEnter(ctx, s, id)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			update = domain.Update{}
			err = &domain.NodeError{Node: id, Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.emitNodeLeave(ctx, s, id, update, time.Since(started), err)
	}()

	update, err = n.Run(ctx, s)
	if err != nil {
		var nodeErr *domain.NodeError
		if !errors.As(err, &nodeErr) {
			err = &domain.NodeError{Node: id, Cause: err}
		}
	}
	return update, err
}
