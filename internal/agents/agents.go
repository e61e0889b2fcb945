// Package agents implements the pipeline nodes.
//
// Every node reads the run record and returns a partial domain.Update; none
// of them mutates the record. Collaborator failures are absorbed here and
// turned into fallback output, so a node only returns an error for bugs.
package agents

import (
	"io"
	"log/slog"
	"strconv"
	"time"
)

// base carries the dependencies every node shares.
type base struct {
	logger *slog.Logger
	now    func() time.Time
}

func newBase() base {
	return base{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
}

// Option configures the shared parts of a node.
type Option func(*base)

// WithLogger sets the node logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock overrides the wall clock (message timestamps, booking dates).
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

func (b *base) apply(opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

// formatReading renders a sensor value the way it appears in reasons:
// "75" rather than "75.000000".
func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
