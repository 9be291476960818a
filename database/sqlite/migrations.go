package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// Migrate creates the cache table and its expiry index if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, table string) error {
	quotedTable := quoteIdentifier(table)
	indexExpiresAt := quoteIdentifier(fmt.Sprintf("idx_%s_expires_at", table))

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cache_key TEXT NOT NULL PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER,
			updated_at INTEGER NOT NULL
		)
	`, quotedTable)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("migrate up %s: create table: %w", table, err)
	}

	indexSQL := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)
	`, indexExpiresAt, quotedTable)

	if _, err := db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("migrate up %s: create index expires_at: %w", table, err)
	}

	return nil
}

// DropTable removes the cache table.
func DropTable(ctx context.Context, db *sql.DB, table string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(table))); err != nil {
		return fmt.Errorf("migrate down %s: %w", table, err)
	}
	return nil
}
