package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/cache"
)

// Store is a cache.Store kept in a PostgreSQL table. Expired rows are hidden
// at read time and reclaimed by PurgeExpired.
type Store struct {
	pool  *pgxpool.Pool
	table string
	query queries
	now   func() time.Time
}

type queries struct {
	get    string
	set    string
	delete string
	purge  string
}

// Open creates a pgx pool for dsn and checks it is reachable.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w: %w", riders.ErrConnectivity, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w: %w", riders.ErrConnectivity, err)
	}
	return pool, nil
}

// NewStore returns a Store on an already migrated table.
func NewStore(pool *pgxpool.Pool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("new postgres store: %w: pool is nil", riders.ErrInvalidInput)
	}
	if !riders.IsValidTableName(table) {
		return nil, fmt.Errorf("new postgres store: %w: invalid table name: %s", riders.ErrInvalidInput, table)
	}

	t := pgx.Identifier{table}.Sanitize()
	return &Store{
		pool:  pool,
		table: table,
		now:   time.Now,
		query: queries{
			get: fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE cache_key = $1`, t),
			set: fmt.Sprintf(`
				INSERT INTO %s (cache_key, value, expires_at, updated_at) VALUES ($1, $2, $3, $4)
				ON CONFLICT (cache_key) DO UPDATE SET
					value = EXCLUDED.value,
					expires_at = EXCLUDED.expires_at,
					updated_at = EXCLUDED.updated_at
			`, t),
			delete: fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, t),
			purge:  fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= $1`, t),
		},
	}, nil
}

// SetClock replaces the time source used for expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt *time.Time

	err := s.pool.QueryRow(ctx, s.query.get, key).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w: %w", riders.ErrConnectivity, err)
	}

	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()

	var expiresAt *time.Time
	if ttl > 0 {
		at := now.Add(ttl)
		expiresAt = &at
	}
	if value == nil {
		value = []byte{}
	}

	if _, err := s.pool.Exec(ctx, s.query.set, key, value, expiresAt, now); err != nil {
		return fmt.Errorf("postgres set: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, s.query.delete, key); err != nil {
		return fmt.Errorf("postgres delete: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, s.query.purge, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w: %w", riders.ErrConnectivity, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
