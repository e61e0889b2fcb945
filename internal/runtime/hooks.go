package runtime

import (
	"context"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

func (e *Engine) eventBase(s *domain.State, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		RunID:     s.RunID,
		VehicleID: s.VehicleID,
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, s *domain.State, id domain.NodeID) {
	e.logger.Debug("node enter", "run_id", s.RunID, "node", id)
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: e.eventBase(s, domain.EventNodeEnter), NodeID: id})
	}
}

func (e *Engine) emitNodeLeave(ctx context.Context, s *domain.State, id domain.NodeID, u domain.Update, d time.Duration, err error) {
	fields := u.Fields()
	e.logger.Debug("node leave", "run_id", s.RunID, "node", id, "fields", fields, "duration", d)
	if e.hooks.OnNodeLeave == nil {
		return
	}
	ev := &domain.NodeEvent{
		EventBase: e.eventBase(s, domain.EventNodeLeave),
		NodeID:    id,
		Fields:    fields,
		Duration:  d,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	e.hooks.OnNodeLeave(ctx, ev)
}

func (e *Engine) emitTransition(ctx context.Context, s *domain.State, from, to domain.NodeID, allowed bool) {
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: e.eventBase(s, domain.EventTransition),
			Source:    from,
			Target:    to,
			Allowed:   allowed,
		})
	}
}

func (e *Engine) emitRunEnd(ctx context.Context, s *domain.State, outcome domain.RunOutcome, started time.Time) {
	if e.hooks.OnRunEnd != nil {
		path := make([]domain.NodeID, len(s.Path))
		copy(path, s.Path)
		e.hooks.OnRunEnd(ctx, &domain.RunEvent{
			EventBase: e.eventBase(s, domain.EventRunEnd),
			Outcome:   outcome,
			Path:      path,
			Duration:  time.Since(started),
		})
	}
}
