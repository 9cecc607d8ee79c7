package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	kvKeyPrefix         = "kv:"
	defaultWatchRetries = 5
)

// ErrUpdateConflict is returned when a watched key kept changing for every retry
var ErrUpdateConflict = errors.New("kv entry changed concurrently")

// RedisAttemptStore persists attempt collections as plain Redis string values
type RedisAttemptStore struct {
	client     *redis.Client
	maxRetries int
}

// NewRedisAttemptStore creates a new RedisAttemptStore
func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{
		client:     client,
		maxRetries: defaultWatchRetries,
	}
}

// Get returns the blob stored under name, or nil if the key does not exist
func (s *RedisAttemptStore) Get(ctx context.Context, name string) ([]byte, error) {
	value, err := s.client.Get(ctx, kvKeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read redis entry: %w", err)
	}

	return value, nil
}

// Set replaces the blob stored under name. Entries never expire; lapsed records are purged
// by the limiter itself.
func (s *RedisAttemptStore) Set(ctx context.Context, name string, value []byte) error {
	if err := s.client.Set(ctx, kvKeyPrefix+name, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write redis entry: %w", err)
	}
	return nil
}

// Update applies fn under an optimistic WATCH on the key, retrying when another writer wins
func (s *RedisAttemptStore) Update(ctx context.Context, name string, fn func(current []byte) ([]byte, error)) error {
	key := kvKeyPrefix + name

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read redis entry: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return ErrUpdateConflict
}

// Ping checks the Redis connection
func (s *RedisAttemptStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
