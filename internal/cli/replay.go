package cli

import (
	"context"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
)

// Diagnose runs the engine on one reading of vin, continuing its stored
// record. It returns the record before and after the run.
func (a *App) Diagnose(ctx context.Context, vin string, sample domain.Sample) (prev, next *domain.State, err error) {
	next, err = a.Sessions.Turn(ctx, vin, func(ctx context.Context, p *domain.State) (*domain.State, error) {
		prev = p
		return a.Engine.Run(ctx, autonoma.NextReading(p, vin, sample))
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// ReplayFunc observes one replayed reading.
type ReplayFunc func(sample domain.Sample, prev, next *domain.State) error

// Replay diagnoses every sample of src until the source closes, ctx is
// done, fn fails or limit samples were processed (0 means no limit). It
// returns the number of samples diagnosed.
func (a *App) Replay(ctx context.Context, src ports.TelemetrySource, vin string, limit int, fn ReplayFunc) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := 0
	for sample := range src.Stream(ctx) {
		prev, next, err := a.Diagnose(ctx, vin, sample)
		if err != nil {
			return n, err
		}
		n++
		if fn != nil {
			if err := fn(sample, prev, next); err != nil {
				return n, err
			}
		}
		if limit > 0 && n >= limit {
			return n, nil
		}
	}
	return n, ctx.Err()
}
