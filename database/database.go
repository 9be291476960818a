package database

import (
	"context"
	"fmt"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/cache"
	"github.com/riders-api/riders/database/postgres"
	"github.com/riders-api/riders/database/sqlite"
)

// DefaultTable is the cache table used when Config.Table is empty.
const DefaultTable = "riders_cache"

// Config holds the configuration for connecting to a SQL cache backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Table is the name of the cache table
	Table string `mapstructure:"table"`
}

// Store is a cache.Store backed by a SQL table.
type Store interface {
	cache.Store
	Ping(ctx context.Context) error
	PurgeExpired(ctx context.Context) (int64, error)
	Close() error
}

// Connect opens the configured backend, runs migrations, validates the schema
// and returns a ready Store. Close the Store to release the connection.
func Connect(ctx context.Context, cfg Config) (Store, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !riders.IsValidTableName(table) {
		return nil, fmt.Errorf("connect database: %w: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", riders.ErrInvalidInput, table)
	}

	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN, table)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN, table)
	default:
		return nil, fmt.Errorf("connect database: %w: unsupported database type: %q", riders.ErrInvalidInput, cfg.Type)
	}
}

func connectSQLite(ctx context.Context, dsn, table string) (Store, error) {
	db, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err = sqlite.Migrate(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	if err = sqlite.ValidateSchema(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate sqlite schema: %w", err)
	}

	store, err := sqlite.NewStore(db, table)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite store: %w", err)
	}
	return store, nil
}

func connectPostgres(ctx context.Context, dsn, table string) (Store, error) {
	pool, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err = postgres.Migrate(ctx, pool, table); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	if err = postgres.ValidateSchema(ctx, pool, table); err != nil {
		pool.Close()
		return nil, fmt.Errorf("validate postgres schema: %w", err)
	}

	store, err := postgres.NewStore(pool, table)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres store: %w", err)
	}
	return store, nil
}
