package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, string, *domain.State) error { return nil }
func (nopStore) Load(context.Context, string) (*domain.State, error) {
	return nil, domain.ErrRunNotFound
}
func (nopStore) Delete(context.Context, string) error   { return nil }
func (nopStore) List(context.Context) ([]string, error) { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		vid := fmt.Sprintf("EV-%d", i)
		_ = mgr.Save(ctx, vid, &domain.State{})
		_, _ = mgr.Turn(ctx, vid, func(_ context.Context, prev *domain.State) (*domain.State, error) {
			return prev, nil
		})
		_ = mgr.Delete(ctx, vid)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("memory leak detected: %d locks remaining after %d vehicles", lockCount, count)
	}
}
