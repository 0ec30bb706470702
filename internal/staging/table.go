package staging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Table is a staging table inside the current transaction.
type Table struct {
	Name       string
	Columns    []string
	PrimaryKey []string
}

// Identifier returns the pg_temp-qualified identifier.
func (t *Table) Identifier() pgx.Identifier {
	return pgx.Identifier{"pg_temp", t.Name}
}

// QualifiedName returns the quoted pg_temp.name.
func (t *Table) QualifiedName() string {
	return t.Identifier().Sanitize()
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// CreateTable creates an all-TEXT temporary table that is dropped at the end
// of the transaction, with an index on pkCols when given. q must be a
// transaction.
func CreateTable(ctx context.Context, q csvingest.Querier, columns, pkCols []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("staging table needs at least one column")
	}
	t := &Table{
		Name:       "stg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Columns:    append([]string(nil), columns...),
		PrimaryKey: append([]string(nil), pkCols...),
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	sql := fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP", t.QualifiedName(), strings.Join(defs, ", "))
	if _, err := q.Exec(ctx, sql); err != nil {
		return nil, fmt.Errorf("create staging table: %w", err)
	}

	if len(pkCols) > 0 {
		sql := fmt.Sprintf("CREATE INDEX ON %s (%s)", t.QualifiedName(), quoteColumns(pkCols))
		if _, err := q.Exec(ctx, sql); err != nil {
			return nil, fmt.Errorf("index staging table: %w", err)
		}
	}
	return t, nil
}

// Dedupe deletes every staging row whose key also appears in a row stored
// later. COPY appends rows in load order, so the row loaded last survives.
// Without key columns it does nothing.
func Dedupe(ctx context.Context, q csvingest.Querier, t *Table) (int64, error) {
	if len(t.PrimaryKey) == 0 {
		return 0, nil
	}

	conds := make([]string, 0, len(t.PrimaryKey)+1)
	for _, c := range t.PrimaryKey {
		col := pgx.Identifier{c}.Sanitize()
		conds = append(conds, fmt.Sprintf("t.%s = d.%s", col, col))
	}
	conds = append(conds, "t.ctid < d.ctid")

	sql := fmt.Sprintf("DELETE FROM %s t USING %s d WHERE %s",
		t.QualifiedName(), t.QualifiedName(), strings.Join(conds, " AND "))
	tag, err := q.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("dedupe staging table: %w", err)
	}
	return tag.RowsAffected(), nil
}
