// Package cache provides a redis-backed TTL key/value store used as the
// classification pipeline's idempotency store when an external cache is
// configured.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore marks processed state hashes in redis with a per-key TTL.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore connects to the redis instance at addr and verifies the
// connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisStore{Client: client}, nil
}

// IsProcessed reports whether key holds an unexpired processed mark.
func (s *RedisStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	_, err := s.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read mark %q: %w", key, err)
	}
	return true, nil
}

// MarkProcessed records key as processed for the given TTL.
func (s *RedisStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.Client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("write mark %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.Client.Close()
}
