package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riders-api/riders"
)

type columnInfo struct {
	dataType   string
	isNullable bool
}

var cacheTableSchema = map[string]columnInfo{
	"cache_key":  {"text", false},
	"value":      {"bytea", false},
	"expires_at": {"timestamp with time zone", true},
	"updated_at": {"timestamp with time zone", false},
}

// ValidateSchema checks that table exists with the columns the Store expects.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, table string) error {
	if !riders.IsValidTableName(table) {
		return fmt.Errorf("validate schema: %w: invalid table name: %s", riders.ErrInvalidInput, table)
	}

	exists, err := tableExists(ctx, pool, table)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("validate schema: table %s does not exist", table)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return fmt.Errorf("validate schema %s: query columns: %w", table, err)
	}
	defer rows.Close()

	actual := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate schema %s: scan column: %w", table, err)
		}
		actual[name] = columnInfo{
			dataType:   strings.ToLower(dataType),
			isNullable: nullable == "YES",
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

func tableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`
	if err := pool.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}
