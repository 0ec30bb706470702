package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/vvka-141/csvingest/internal/schema"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Uploader copies a finished snapshot somewhere else.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Result describes one exported table.
type Result struct {
	Table    string
	Path     string
	Rows     int64
	Location string // remote location when uploaded
	Skipped  bool   // table does not exist
}

// Exporter writes <root>/<YYYYMMDD>/<table>.parquet snapshots.
type Exporter struct {
	root     string
	clock    clockwork.Clock
	uploader Uploader
	logger   csvingest.Logger
}

// NewExporter creates an Exporter rooted at root. uploader may be nil.
// Panics if clock or logger is nil.
func NewExporter(root string, clock clockwork.Clock, uploader Uploader, logger csvingest.Logger) *Exporter {
	if clock == nil {
		panic("clock cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Exporter{root: root, clock: clock, uploader: uploader, logger: logger}
}

// PartitionPath returns where a snapshot of table taken now is written.
func (e *Exporter) PartitionPath(table string) string {
	return filepath.Join(e.root, e.clock.Now().Format(csvingest.RunDateLayout), table+".parquet")
}

// Export writes every row of schema.table, each column cast to text, in
// table column order. A missing table is logged and reported as skipped.
// Upload failures are logged and do not fail the export.
func (e *Exporter) Export(ctx context.Context, q csvingest.Querier, schemaName, table string) (Result, error) {
	result := Result{Table: table}

	exists, err := schema.TableExists(ctx, q, schemaName, table)
	if err != nil {
		return result, err
	}
	if !exists {
		e.logger.Warn("snapshot skipped, table does not exist", "table", schema.QualifiedName(schemaName, table))
		result.Skipped = true
		return result, nil
	}

	columns, err := schema.Columns(ctx, q, schemaName, table)
	if err != nil {
		return result, err
	}

	exprs := make([]string, len(columns))
	for i, c := range columns {
		exprs[i] = pgx.Identifier{c}.Sanitize() + "::text"
	}
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), schema.QualifiedName(schemaName, table)))
	if err != nil {
		return result, fmt.Errorf("read %s: %w", schema.QualifiedName(schemaName, table), err)
	}
	defer rows.Close()

	path := e.PartitionPath(table)
	out, err := NewParquetFile(path, columns)
	if err != nil {
		return result, err
	}

	values := make([]*string, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		for i := range values {
			values[i] = nil
		}
		if err := rows.Scan(dest...); err != nil {
			out.abort()
			return result, fmt.Errorf("scan %s: %w", table, err)
		}
		if err := out.Write(values); err != nil {
			out.abort()
			return result, fmt.Errorf("write %s: %w", path, err)
		}
		result.Rows++
	}
	if err := rows.Err(); err != nil {
		out.abort()
		return result, fmt.Errorf("read %s: %w", table, err)
	}
	if err := out.Close(); err != nil {
		return result, err
	}

	result.Path = path
	e.logger.Info("snapshot written", "table", table, "path", path, "rows", result.Rows, "columns", len(columns))

	if e.uploader != nil {
		key := filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))
		location, err := e.uploader.Upload(ctx, path, key)
		if err != nil {
			e.logger.Warn("snapshot upload failed", "table", table, "path", path, "error", err)
		} else {
			result.Location = location
			e.logger.Info("snapshot uploaded", "table", table, "location", location)
		}
	}
	return result, nil
}
