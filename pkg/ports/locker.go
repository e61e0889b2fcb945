package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets the session manager serialize runs of one vehicle across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or the context is canceled.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
