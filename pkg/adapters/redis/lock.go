package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}
}

// Lock acquires a distributed lock for key using SET NX PX, polling until it
// succeeds or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
