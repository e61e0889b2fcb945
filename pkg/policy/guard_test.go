package policy

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	err     error
}

func (s *recordingSink) Record(_ context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func TestGuard_CheckAudits(t *testing.T) {
	sink := &recordingSink{}
	fixed := time.Date(2025, 12, 6, 10, 0, 0, 0, time.UTC)
	g := NewGuard(nil, WithAuditSink(sink), WithClock(func() time.Time { return fixed }), WithAgentName("ueba"))

	assert.True(t, g.Check(context.Background(), "Data_Analysis", "DIAGNOSIS"))
	assert.False(t, g.Check(context.Background(), "diagnosis", "end"))

	require.Len(t, sink.records, 2)
	assert.Equal(t, domain.AuditRecord{
		AgentName: "ueba",
		Source:    "data_analysis",
		Target:    "diagnosis",
		Status:    domain.AuditAllowed,
		Timestamp: fixed,
	}, sink.records[0])
	assert.Equal(t, domain.AuditBlocked, sink.records[1].Status)
}

func TestGuard_UnknownSourceFailsClosed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := &recordingSink{}
	g := NewGuard(Default(), WithLogger(logger), WithAuditSink(sink))

	assert.False(t, g.Check(context.Background(), "billing", "end"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "unknown source")
	require.Len(t, sink.records, 1)
	assert.Equal(t, domain.AuditBlocked, sink.records[0].Status)
}

func TestGuard_LogsEveryDecision(t *testing.T) {
	var buf bytes.Buffer
	g := NewGuard(nil, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	g.Check(context.Background(), "start", "data_analysis")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "transition allowed")

	buf.Reset()
	g.Check(context.Background(), "rca", "scheduling")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "blocked")
}

func TestGuard_AuditFailureDoesNotChangeDecision(t *testing.T) {
	failing := &recordingSink{err: errors.New("unavailable")}
	g := NewGuard(nil, WithAuditSink(failing))
	assert.True(t, g.Check(context.Background(), "start", "data_analysis"))

	panicking := ports.AuditSinkFunc(func(context.Context, domain.AuditRecord) error { panic("boom") })
	g = NewGuard(nil, WithAuditSink(panicking))
	assert.True(t, g.Check(context.Background(), "rca", "end"))
}

func TestGuard_AuditSurvivesCanceledContext(t *testing.T) {
	var gotErr error
	sink := ports.AuditSinkFunc(func(ctx context.Context, _ domain.AuditRecord) error {
		gotErr = ctx.Err()
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGuard(nil, WithAuditSink(sink))
	g.Check(ctx, "start", "data_analysis")
	assert.NoError(t, gotErr)
}

func TestGuard_ConcurrentChecks(t *testing.T) {
	sink := &recordingSink{}
	g := NewGuard(nil, WithAuditSink(sink))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Check(context.Background(), "scheduling", "rca")
		}()
	}
	wg.Wait()
	assert.Len(t, sink.records, 50)
}
