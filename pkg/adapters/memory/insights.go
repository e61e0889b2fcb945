package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// InsightStore implements ports.InsightStore in memory.
type InsightStore struct {
	mu       sync.RWMutex
	insights []domain.Insight
}

// NewInsightStore creates an empty store.
func NewInsightStore() *InsightStore {
	return &InsightStore{}
}

// Publish appends an insight.
func (s *InsightStore) Publish(_ context.Context, in domain.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, in)
	return nil
}

// ListInsights returns up to limit insights, newest first. A limit <= 0
// returns everything.
func (s *InsightStore) ListInsights(_ context.Context, limit int) ([]domain.Insight, error) {
	s.mu.RLock()
	out := make([]domain.Insight, len(s.insights))
	copy(out, s.insights)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
