package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventTransition EventType = "transition"
	EventRunEnd     EventType = "run_end"
)

// RunOutcome summarizes how a run stopped.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed" // reached END through allowed edges
	OutcomeBlocked   RunOutcome = "blocked"   // the guard rejected an edge
	OutcomeFailed    RunOutcome = "failed"    // a node raised
	OutcomeCanceled  RunOutcome = "canceled"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	VehicleID string    `json:"vehicle_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   NodeID        `json:"node_id"`
	Fields   []string      `json:"fields,omitempty"`   // set on leave
	Duration time.Duration `json:"duration,omitempty"` // set on leave
	Err      string        `json:"error,omitempty"`
}

// TransitionEvent represents a guard decision.
type TransitionEvent struct {
	EventBase
	Source  NodeID `json:"source"`
	Target  NodeID `json:"target"`
	Allowed bool   `json:"allowed"`
}

// RunEvent is emitted once when a run stops.
type RunEvent struct {
	EventBase
	Outcome  RunOutcome    `json:"outcome"`
	Path     []NodeID      `json:"path"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnRunEnd     func(context.Context, *RunEvent)
}

// Combine returns hooks that call h first and then other.
func (h LifecycleHooks) Combine(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:  chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:  chain(h.OnNodeLeave, other.OnNodeLeave),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnRunEnd:     chain(h.OnRunEnd, other.OnRunEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
