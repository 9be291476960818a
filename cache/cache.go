package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/codec"
	"github.com/riders-api/riders/metrics"
)

// Cache is a cache-aside front for a Store. It holds no entries itself.
type Cache struct {
	store   Store
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records memoize hits and misses on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Cache) {
		c.metrics = collector
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key. A missing key reports found=false
// with a nil error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		c.metrics.RecordError("cache", "connectivity")
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key for ttl (0 = no expiry), overwriting silently.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.metrics.RecordError("cache", "connectivity")
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete removes key; absent keys are ignored.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		c.metrics.RecordError("cache", "connectivity")
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Key derives the memoize key for a call of the function called name with args.
// Equal arguments always produce the same key; base64 never contains ':' so
// the name and argument parts cannot be confused.
func Key(name string, args any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache key %s: %w: %w", name, riders.ErrSerialization, err)
	}
	return name + ":" + codec.EncodeBase64(raw), nil
}

// Memoize wraps fn so that its JSON-encoded result is cached under
// Key(name, args) for ttl. On a hit fn is not invoked.
//
// Use a struct for A when the function takes several arguments.
func Memoize[A, R any](c *Cache, name string, ttl time.Duration, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, args A) (R, error) {
		var zero R

		key, err := Key(name, args)
		if err != nil {
			return zero, fmt.Errorf("memoize: %w", err)
		}

		raw, found, err := c.Get(ctx, key)
		if err != nil {
			return zero, fmt.Errorf("memoize %s: %w", name, err)
		}

		if found {
			var cached R
			if err := json.Unmarshal(raw, &cached); err != nil {
				return zero, fmt.Errorf("memoize %s: decode cached value: %w: %w", name, riders.ErrSerialization, err)
			}
			c.metrics.RecordCacheHit(name)
			c.logger.Debug("memoize hit", "name", name, "key", key)
			return cached, nil
		}

		c.metrics.RecordCacheMiss(name)
		c.logger.Debug("memoize miss", "name", name, "key", key)

		result, err := fn(ctx, args)
		if err != nil {
			return zero, err
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			return zero, fmt.Errorf("memoize %s: encode result: %w: %w", name, riders.ErrSerialization, err)
		}

		if err := c.Set(ctx, key, encoded, ttl); err != nil {
			return zero, fmt.Errorf("memoize %s: %w", name, err)
		}

		return result, nil
	}
}
