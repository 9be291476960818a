// Package database provides SQL-backed alternatives to the Redis cache store.
//
// Both backends keep entries in one table (cache_key, value, expires_at,
// updated_at). Expiry is checked when an entry is read, so an expired row is
// reported as a cache miss even before PurgeExpired removes it.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for deployments that already run Postgres
//   - SQLite: modernc.org/sqlite, for development and single-node deployments
//
// # Usage
//
//	store, err := database.Connect(ctx, database.Config{
//	    Type:  "sqlite",
//	    DSN:   "riders-cache.db",
//	    Table: "riders_cache",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	c := cache.New(store)
//
// Connect runs migrations and validates the schema before returning.
package database
