// Package merge moves deduplicated staging rows into target tables.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/csvingest/internal/schema"
	"github.com/vvka-141/csvingest/internal/staging"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Upsert inserts every staging row into schema.target. Rows whose key already
// exists overwrite all non-key columns; when every column is a key column the
// conflicting rows are left alone. columns must be the target's column list;
// staging columns not in it are ignored and target columns missing from
// staging are set to NULL.
func Upsert(ctx context.Context, q csvingest.Querier, stg *staging.Table, schemaName, target string, columns, pkCols []string) (int64, error) {
	if len(pkCols) == 0 {
		return 0, fmt.Errorf("upsert into %s.%s needs primary key columns: %w", schemaName, target, csvingest.ErrInvalidConfig)
	}

	insert := insertSelect(stg, schemaName, target, columns)

	keys := make(map[string]bool, len(pkCols))
	for _, k := range pkCols {
		keys[k] = true
	}
	var sets []string
	for _, c := range columns {
		if keys[c] {
			continue
		}
		col := pgx.Identifier{c}.Sanitize()
		sets = append(sets, col+" = EXCLUDED."+col)
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	sql := fmt.Sprintf("%s ON CONFLICT (%s) %s", insert, quoteColumns(pkCols), action)

	tag, err := q.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("upsert into %s: %w", schema.QualifiedName(schemaName, target), err)
	}
	return tag.RowsAffected(), nil
}

// Append inserts every staging row into schema.target without conflict handling.
func Append(ctx context.Context, q csvingest.Querier, stg *staging.Table, schemaName, target string, columns []string) (int64, error) {
	tag, err := q.Exec(ctx, insertSelect(stg, schemaName, target, columns))
	if err != nil {
		return 0, fmt.Errorf("append into %s: %w", schema.QualifiedName(schemaName, target), err)
	}
	return tag.RowsAffected(), nil
}

func insertSelect(stg *staging.Table, schemaName, target string, columns []string) string {
	present := make(map[string]bool, len(stg.Columns))
	for _, c := range stg.Columns {
		present[c] = true
	}
	exprs := make([]string, len(columns))
	for i, c := range columns {
		if present[c] {
			exprs[i] = pgx.Identifier{c}.Sanitize()
		} else {
			exprs[i] = "NULL::text"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		schema.QualifiedName(schemaName, target), quoteColumns(columns), strings.Join(exprs, ", "), stg.QualifiedName())
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
