package agents

import (
	"context"
	"sync"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a testify mock for ports.TextGenerator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockScheduler is a testify mock for ports.Scheduler.
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ListSlots(ctx context.Context, date string) ([]string, error) {
	args := m.Called(ctx, date)
	slots, _ := args.Get(0).([]string)
	return slots, args.Error(1)
}

func (m *MockScheduler) Book(ctx context.Context, date, slot, vehicleID string) (string, error) {
	args := m.Called(ctx, date, slot, vehicleID)
	return args.String(0), args.Error(1)
}

type collectingSink struct {
	mu       sync.Mutex
	insights []domain.Insight
	err      error
}

func (c *collectingSink) Publish(_ context.Context, in domain.Insight) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insights = append(c.insights, in)
	return c.err
}

var fixedNow = time.Date(2025, 12, 6, 14, 5, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
