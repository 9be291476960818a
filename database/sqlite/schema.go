package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/riders-api/riders"
)

type columnInfo struct {
	dataType   string
	isNullable bool
}

var cacheTableSchema = map[string]columnInfo{
	"cache_key":  {"text", false},
	"value":      {"blob", false},
	"expires_at": {"integer", true},
	"updated_at": {"integer", false},
}

// ValidateSchema checks that table exists with the columns the Store expects.
func ValidateSchema(ctx context.Context, db *sql.DB, table string) error {
	if !riders.IsValidTableName(table) {
		return fmt.Errorf("validate schema: %w: invalid table name: %s", riders.ErrInvalidInput, table)
	}

	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("validate schema: table %s does not exist", table)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return fmt.Errorf("validate schema %s: query columns: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]columnInfo)
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dfltValue sql.NullString

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("validate schema %s: scan column: %w", table, err)
		}
		actual[name] = columnInfo{
			dataType:   strings.ToLower(dataType),
			isNullable: notNull == 0,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate schema %s: rows error: %w", table, err)
	}

	var problems []string
	for name, expected := range cacheTableSchema {
		got, ok := actual[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing column %s", name))
			continue
		}
		if got.dataType != expected.dataType {
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", name, expected.dataType, got.dataType))
		}
		if got.isNullable != expected.isNullable {
			problems = append(problems, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", name, expected.isNullable, got.isNullable))
		}
	}

	if len(problems) > 0 {
		return errors.New("table " + table + " schema validation failed: " + strings.Join(problems, "; "))
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}
