package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/riders-api/riders/cache"
	"github.com/riders-api/riders/config"
	"github.com/riders-api/riders/database"
	"github.com/riders-api/riders/httpclient"
	"github.com/riders-api/riders/metrics"
	"github.com/riders-api/riders/queue"
)

// cacheStore is what every cache backend offers besides cache.Store.
type cacheStore interface {
	cache.Store
	Ping(ctx context.Context) error
	Close() error
}

// openCacheStore connects the backend selected by cache.backend.
func openCacheStore(ctx context.Context, cfg *config.Config) (cacheStore, error) {
	switch cfg.Cache.Backend {
	case "sqlite", "postgres":
		dbCfg := cfg.Database
		dbCfg.Type = cfg.Cache.Backend
		store, err := database.Connect(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect %s cache: %w", dbCfg.Type, err)
		}
		return store, nil
	default:
		store, err := cache.NewRedisStoreWithOptions(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return store, nil
	}
}

// openQueue connects to amqp.url. It returns nil when no broker is configured.
func openQueue(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*queue.Client, error) {
	if cfg.AMQP.URL == "" {
		return nil, nil
	}

	client := queue.New(cfg.AMQP.URL,
		queue.WithPrefetch(cfg.AMQP.Prefetch),
		queue.WithConfirms(cfg.AMQP.Confirm),
		queue.WithDurable(cfg.AMQP.Durable),
		queue.WithConnectRetries(cfg.AMQP.ConnectRetries, queue.DefaultRetryInterval),
		queue.WithMetrics(collector),
		queue.WithLogger(slog.Default().With("component", "queue")),
	)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func newHTTPClient(cfg *config.Config, collector *metrics.Collector) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithConcurrency(cfg.HTTP.Concurrency),
		httpclient.WithMetrics(collector),
		httpclient.WithLogger(slog.Default().With("component", "httpclient")),
	}
	if cfg.HTTP.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.HTTP.Timeout))
	}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, httpclient.WithHeader("User-Agent", cfg.HTTP.UserAgent))
	}
	return httpclient.New(opts...)
}

// commandTimeout bounds one-shot broker and cache commands.
const commandTimeout = 30 * time.Second
