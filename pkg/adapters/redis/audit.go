package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// AuditStream appends audit records to a capped Redis stream.
type AuditStream struct {
	client *backend.Client
	stream string
	maxLen int64
}

// NewAuditStream creates a sink writing to stream, keeping roughly maxLen entries.
func NewAuditStream(client *backend.Client, stream string, maxLen int64) *AuditStream {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &AuditStream{client: client, stream: stream, maxLen: maxLen}
}

// Record implements ports.AuditSink.
func (a *AuditStream) Record(ctx context.Context, rec domain.AuditRecord) error {
	err := a.client.XAdd(ctx, &backend.XAddArgs{
		Stream: a.stream,
		MaxLen: a.maxLen,
		Approx: true,
		Values: map[string]any{
			"agent_name": rec.AgentName,
			"source":     rec.Source,
			"target":     rec.Target,
			"status":     string(rec.Status),
			"timestamp":  rec.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Recent returns up to count records, newest first.
func (a *AuditStream) Recent(ctx context.Context, count int64) ([]domain.AuditRecord, error) {
	msgs, err := a.client.XRevRangeN(ctx, a.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit stream: %w", err)
	}

	out := make([]domain.AuditRecord, 0, len(msgs))
	for _, m := range msgs {
		rec := domain.AuditRecord{
			AgentName: str(m.Values["agent_name"]),
			Source:    str(m.Values["source"]),
			Target:    str(m.Values["target"]),
			Status:    domain.AuditStatus(str(m.Values["status"])),
		}
		if ts, err := time.Parse(time.RFC3339Nano, str(m.Values["timestamp"])); err == nil {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
