package ports

import (
	"context"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// TextGenerator produces a free-text reply for a prompt.
// Implementations may be slow or unavailable; callers bound them with the
// context and fall back on error.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Scheduler is the service-center boundary.
type Scheduler interface {
	// ListSlots returns the free slot times for a date (YYYY-MM-DD).
	ListSlots(ctx context.Context, date string) ([]string, error)

	// Book reserves a slot and returns its booking id. A rejected booking is
	// reported either as an error or as the domain.BookingFailed id.
	Book(ctx context.Context, date, time, vehicleID string) (string, error)
}

// TelemetrySource is a lazy, possibly infinite sequence of samples.
// Each call to Stream starts from the beginning; the channel is closed when
// ctx is done or the source is exhausted.
type TelemetrySource interface {
	Stream(ctx context.Context) <-chan domain.Sample
}

// InsightSink receives root-cause insights.
type InsightSink interface {
	Publish(ctx context.Context, insight domain.Insight) error
}

// InsightStore is an InsightSink that can list what it received, newest first.
type InsightStore interface {
	InsightSink
	ListInsights(ctx context.Context, limit int) ([]domain.Insight, error)
}
