package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/cache"
	"github.com/riders-api/riders/codec"
	"github.com/riders-api/riders/config"
	ridershttp "github.com/riders-api/riders/http"
	"github.com/riders-api/riders/metrics"
	"github.com/riders-api/riders/objectstore"
	"github.com/riders-api/riders/queue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the Riders HTTP server.

Bucket listings are memoized in the configured cache. When amqp.url is set,
uploads and deletions are announced on the amqp.events_queue queue.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8000, "HTTP server port (env: RIDERS_SERVER_PORT)")
	serveCmd.Flags().String("static-dir", "", "directory served under /api/static")
	serveCmd.Flags().String("aws-region", "", "S3 region (env: AWS_REGION)")
	serveCmd.Flags().String("aws-endpoint", "", "S3-compatible endpoint, e.g. http://localhost:9000")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollectorWithRegistry(registry)

	store, err := openCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	slog.Info("connected to cache", "backend", cfg.Cache.Backend)

	memo := cache.New(store,
		cache.WithMetrics(collector),
		cache.WithLogger(slog.Default().With("component", "cache")),
	)

	s3, err := objectstore.New(ctx, objectstore.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.Endpoint,
		Logger:          slog.Default().With("component", "objectstore"),
	})
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}
	objects := objectstore.WithCachedBuckets(s3, memo, cfg.Cache.BucketTTL)

	serviceCfg := riders.ServiceConfig{
		PresignExpiry: cfg.Server.PresignExpiry,
		ACL:           cfg.Server.ACL,
		Logger:        slog.Default().With("component", "storage"),
	}

	broker, err := openQueue(ctx, cfg, collector)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	if broker != nil {
		defer func() { _ = broker.Close() }()

		events := cfg.AMQP.EventsQueue
		if err := broker.DeclareQueue(ctx, events, events, ""); err != nil {
			return fmt.Errorf("declare events queue: %w", err)
		}
		serviceCfg.Events = queue.Producer(broker, events, func(_ context.Context, e riders.StorageEvent) ([]byte, error) {
			return json.Marshal(e)
		})
		slog.Info("publishing storage events", "queue", events)
	}

	service, err := riders.NewStorageService(objects, serviceCfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	var verifier ridershttp.TokenVerifier
	if cfg.Auth.Required {
		signer, err := codec.NewSigner(cfg.Auth.TokenSecret)
		if err != nil {
			return fmt.Errorf("create token verifier: %w", err)
		}
		verifier = signer
	}

	handler := ridershttp.NewHandler(&ridershttp.HandlerConfig{
		Version:        version,
		Verifier:       verifier,
		CORS:           cfg.CORS,
		StaticDir:      cfg.Server.StaticDir,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MaxUploadBytes: cfg.Server.MaxUploadSize,
		Logger:         slog.Default().With("component", "http"),
	}, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "version", version)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
