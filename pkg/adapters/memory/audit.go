package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// AuditLog keeps the most recent audit records in a ring buffer.
type AuditLog struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	next    int
	full    bool
}

// NewAuditLog creates a ring of the given capacity (minimum 1).
func NewAuditLog(capacity int) *AuditLog {
	if capacity < 1 {
		capacity = 1
	}
	return &AuditLog{records: make([]domain.AuditRecord, capacity)}
}

// Record implements ports.AuditSink.
func (a *AuditLog) Record(_ context.Context, rec domain.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[a.next] = rec
	a.next = (a.next + 1) % len(a.records)
	if a.next == 0 {
		a.full = true
	}
	return nil
}

// Records returns the retained records, oldest first.
func (a *AuditLog) Records() []domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.full {
		out := make([]domain.AuditRecord, a.next)
		copy(out, a.records[:a.next])
		return out
	}
	out := make([]domain.AuditRecord, 0, len(a.records))
	out = append(out, a.records[a.next:]...)
	return append(out, a.records[:a.next]...)
}

// LogAuditSink writes audit records to a structured logger.
type LogAuditSink struct {
	logger *slog.Logger
}

// NewLogAuditSink creates a sink writing to l.
func NewLogAuditSink(l *slog.Logger) *LogAuditSink {
	return &LogAuditSink{logger: l}
}

// Record implements ports.AuditSink.
func (s *LogAuditSink) Record(ctx context.Context, rec domain.AuditRecord) error {
	level := slog.LevelInfo
	if rec.Status == domain.AuditBlocked {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "ueba audit",
		"agent", rec.AgentName,
		"source", rec.Source,
		"target", rec.Target,
		"status", rec.Status,
		"timestamp", rec.Timestamp,
	)
	return nil
}
