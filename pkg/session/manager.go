package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/autonoma-fleet/autonoma/internal/logging"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a vehicle.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates access to run records, ensuring that operations on
// one vehicle never interleave. Unused locks are garbage collected by
// reference counting.
type Manager struct {
	store ports.RunStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.RunStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu, and call release(vehicleID) after unlocking.
func (m *Manager) acquire(vehicleID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[vehicleID]
	if !exists {
		entry = &lockEntry{}
		m.locks[vehicleID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[vehicleID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, vehicleID)
	}
}

// Load retrieves the stored record of a vehicle.
func (m *Manager) Load(ctx context.Context, vehicleID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, vehicleID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, vehicleID)
		return err
	})
	return state, err
}

// LoadOrStart loads the record of a vehicle, or stores and returns a fresh
// one seeded with data.
func (m *Manager) LoadOrStart(ctx context.Context, vehicleID string, data domain.Sample) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, vehicleID, func(ctx context.Context) error {
		var found bool
		var err error
		state, found, err = m.loadOrNew(ctx, vehicleID, data)
		if err != nil || found {
			return err
		}
		if err := m.store.Save(ctx, vehicleID, state); err != nil {
			return fmt.Errorf("failed to initialize record: %w", err)
		}
		return nil
	})
	return state, err
}

// Turn runs fn on the current record of a vehicle (a fresh one if none is
// stored) and persists what fn returns, all while holding the vehicle lock.
// A nil result is not stored.
func (m *Manager) Turn(ctx context.Context, vehicleID string, fn func(ctx context.Context, prev *domain.State) (*domain.State, error)) (*domain.State, error) {
	var next *domain.State
	err := m.WithLock(ctx, vehicleID, func(ctx context.Context) error {
		prev, _, err := m.loadOrNew(ctx, vehicleID, nil)
		if err != nil {
			return err
		}
		next, err = fn(ctx, prev)
		if err != nil || next == nil {
			return err
		}
		if err := m.store.Save(ctx, vehicleID, next); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}
		return nil
	})
	return next, err
}

func (m *Manager) loadOrNew(ctx context.Context, vehicleID string, data domain.Sample) (*domain.State, bool, error) {
	state, err := m.store.Load(ctx, vehicleID)
	if err == nil {
		return state, true, nil
	}
	if !errors.Is(err, domain.ErrRunNotFound) {
		return nil, false, fmt.Errorf("failed to load record: %w", err)
	}
	return domain.NewState(vehicleID, data), false, nil
}

// Save persists a record.
func (m *Manager) Save(ctx context.Context, vehicleID string, state *domain.State) error {
	return m.WithLock(ctx, vehicleID, func(ctx context.Context) error {
		return m.store.Save(ctx, vehicleID, state)
	})
}

// Delete removes a record.
func (m *Manager) Delete(ctx context.Context, vehicleID string) error {
	return m.WithLock(ctx, vehicleID, func(ctx context.Context) error {
		return m.store.Delete(ctx, vehicleID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying run store.
func (m *Manager) Store() ports.RunStore {
	return m.store
}

// WithLock executes fn while holding the lock for the vehicle.
func (m *Manager) WithLock(ctx context.Context, vehicleID string, fn func(context.Context) error) error {
	entry := m.acquire(vehicleID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(vehicleID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, vehicleID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"vehicle_id", vehicleID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
