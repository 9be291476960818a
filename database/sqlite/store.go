package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/cache"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is a cache.Store kept in a single SQLite table. Expiry is checked when
// an entry is read; PurgeExpired reclaims the space.
type Store struct {
	db    *sql.DB
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

// Open opens dsn with the modernc driver. In-memory databases are limited to
// one connection so every query sees the same data.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w: %w", riders.ErrConnectivity, err)
	}

	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w: %w", riders.ErrConnectivity, err)
	}
	return db, nil
}

// NewStore returns a Store on an already migrated table.
func NewStore(db *sql.DB, table string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("new sqlite store: %w: db is nil", riders.ErrInvalidInput)
	}
	if !riders.IsValidTableName(table) {
		return nil, fmt.Errorf("new sqlite store: %w: invalid table name: %s", riders.ErrInvalidInput, table)
	}

	t := quoteIdentifier(table)
	return &Store{
		db:    db,
		table: table,
		now:   time.Now,
		query: queries{
			get: fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE cache_key = ?`, t),
			set: fmt.Sprintf(`
				INSERT INTO %s (cache_key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (cache_key) DO UPDATE SET
					value = excluded.value,
					expires_at = excluded.expires_at,
					updated_at = excluded.updated_at
			`, t),
			delete: fmt.Sprintf(`DELETE FROM %s WHERE cache_key = ?`, t),
			purge:  fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= ?`, t),
		},
	}, nil
}

// SetClock replaces the time source used for expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt sql.NullInt64

	err := s.db.QueryRowContext(ctx, s.query.get, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w: %w", riders.ErrConnectivity, err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= s.now().UnixMilli() {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()

	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}
	if value == nil {
		value = []byte{}
	}

	if _, err := s.db.ExecContext(ctx, s.query.set, key, value, expiresAt, now.UnixMilli()); err != nil {
		return fmt.Errorf("sqlite set: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.query.delete, key); err != nil {
		return fmt.Errorf("sqlite delete: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.query.purge, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w: %w", riders.ErrConnectivity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w: %w", riders.ErrConnectivity, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
