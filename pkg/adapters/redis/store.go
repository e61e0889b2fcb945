// Package redis provides Redis-backed adapters: the run store, the
// distributed locker and the audit stream.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "autonoma:"

// farFuture is the index score of records without TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.RunStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of stored records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewClient opens a go-redis client.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewFromClient creates a store over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(vehicleID string) string {
	return s.prefix + "run:" + vehicleID
}

func (s *Store) indexKey() string {
	return s.prefix + "run:index"
}

// Save persists the record as JSON and indexes the vehicle by expiry.
func (s *Store) Save(ctx context.Context, vehicleID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(vehicleID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: vehicleID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the record of a vehicle.
func (s *Store) Load(ctx context.Context, vehicleID string) (*domain.State, error) {
	val, err := s.client.Get(ctx, s.key(vehicleID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// Delete removes the record and its index entry.
func (s *Store) Delete(ctx context.Context, vehicleID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(vehicleID))
	pipe.ZRem(ctx, s.indexKey(), vehicleID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns vehicles with a live record, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired records: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
