package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/riders-api/riders"
)

// RedisStore is a Store backed by Redis (GET, SET with EX, DEL).
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("cache: redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithOptions creates a Redis client from go-redis options and wraps it.
func NewRedisStoreWithOptions(options *redis.Options) (*RedisStore, error) {
	if options == nil {
		return nil, errors.New("cache: redis options are required")
	}
	return NewRedisStore(redis.NewClient(options))
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w: %w", riders.ErrConnectivity, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying redis client.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}
