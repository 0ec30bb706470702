// Package schema creates and evolves all-TEXT target tables.
package schema

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// maxIdentifierLength is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// Evolver brings target tables in line with the Column Set.
type Evolver struct {
	logger csvingest.Logger
}

// NewEvolver creates an Evolver.
// Panics if logger is nil.
func NewEvolver(logger csvingest.Logger) *Evolver {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Evolver{logger: logger}
}

// QualifiedName returns the quoted schema.table identifier.
func QualifiedName(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// EnsureSchema creates schema if it does not exist.
func (e *Evolver) EnsureSchema(ctx context.Context, q csvingest.Querier, schema string) error {
	if _, err := q.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	return nil
}

// TableExists reports whether schema.table exists.
func TableExists(ctx context.Context, q csvingest.Querier, schema, table string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s.%s: %w", schema, table, err)
	}
	return exists, nil
}

// Columns returns the column names of schema.table in ordinal order.
func Columns(ctx context.Context, q csvingest.Querier, schema, table string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, table, err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, table, err)
	}
	return cols, nil
}

// EnsureTarget makes sure schema.table exists with the given columns.
//
// An absent table is created with every column TEXT and a primary key on
// pkCols when pkCols is non-empty. For an existing table, columns missing from
// it are added as nullable TEXT when autoAdd is set and otherwise only logged.
// current is the table's column list afterwards; added lists what was added.
func (e *Evolver) EnsureTarget(ctx context.Context, q csvingest.Querier, schema, table string, columns, pkCols []string, autoAdd bool) (current, added []string, err error) {
	exists, err := TableExists(ctx, q, schema, table)
	if err != nil {
		return nil, nil, err
	}

	name := QualifiedName(schema, table)
	if !exists {
		defs := make([]string, 0, len(columns)+1)
		for _, c := range columns {
			defs = append(defs, pgx.Identifier{c}.Sanitize()+" TEXT")
		}
		if len(pkCols) > 0 {
			defs = append(defs, "PRIMARY KEY ("+quoteColumns(pkCols)+")")
		}
		sql := fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
		if _, err := q.Exec(ctx, sql); err != nil {
			return nil, nil, fmt.Errorf("create table %s: %w", name, err)
		}
		e.logger.Info("created target table", "table", name, "columns", len(columns), "primary_key", pkCols)
		return append([]string(nil), columns...), nil, nil
	}

	existing, err := Columns(ctx, q, schema, table)
	if err != nil {
		return nil, nil, err
	}
	missing := difference(columns, existing)
	if len(missing) == 0 {
		return existing, nil, nil
	}
	if !autoAdd {
		e.logger.Warn("source columns missing from target are ignored; use --auto-add-columns to add them",
			"table", name, "columns", missing)
		return existing, nil, nil
	}

	for _, c := range missing {
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", name, pgx.Identifier{c}.Sanitize())
		if _, err := q.Exec(ctx, sql); err != nil {
			return nil, nil, fmt.Errorf("add column %s to %s: %w", c, name, err)
		}
	}
	e.logger.Info("added columns to target table", "table", name, "columns", missing)

	current, err = Columns(ctx, q, schema, table)
	if err != nil {
		return nil, nil, err
	}
	return current, missing, nil
}

// EnsureUniqueKey makes sure schema.table has a unique index or constraint on
// exactly pkCols, in any order, so that ON CONFLICT (pkCols) is accepted.
// It reports whether a constraint had to be added.
func (e *Evolver) EnsureUniqueKey(ctx context.Context, q csvingest.Querier, schema, table string, pkCols []string) (bool, error) {
	if len(pkCols) == 0 {
		return false, nil
	}

	sorted := append([]string(nil), pkCols...)
	sort.Strings(sorted)

	var found bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM pg_index i
			JOIN pg_class c ON c.oid = i.indrelid
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = $1
			  AND c.relname = $2
			  AND i.indisunique
			  AND i.indpred IS NULL
			  AND i.indnkeyatts = cardinality($3::text[])
			  AND (
				SELECT array_agg(a.attname::text ORDER BY a.attname::text COLLATE "C")
				FROM unnest(i.indkey::int2[]) AS k(attnum)
				JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
			  ) = $3::text[]
		)`, schema, table, sorted).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("look up unique key on %s.%s: %w", schema, table, err)
	}
	if found {
		return false, nil
	}

	name := QualifiedName(schema, table)
	constraint := ConstraintName(table, pkCols)
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
		name, pgx.Identifier{constraint}.Sanitize(), quoteColumns(pkCols))
	if _, err := q.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("add unique constraint to %s: %w", name, err)
	}
	e.logger.Info("added unique constraint", "table", name, "constraint", constraint, "columns", pkCols)
	return true, nil
}

// ConstraintName builds <table>_<cols>_uniq. Names longer than PostgreSQL's
// identifier limit are cut and given a hash suffix so they stay distinct.
func ConstraintName(table string, cols []string) string {
	name := table + "_" + strings.Join(cols, "_") + "_uniq"
	if len(name) <= maxIdentifierLength {
		return name
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())

	cut := maxIdentifierLength - len(suffix)
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut] + suffix
}

// difference returns the names in want that are absent from have, in want order.
func difference(want, have []string) []string {
	present := make(map[string]bool, len(have))
	for _, h := range have {
		present[h] = true
	}
	var out []string
	for _, w := range want {
		if !present[w] {
			out = append(out, w)
		}
	}
	return out
}
