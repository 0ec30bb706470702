package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/internal/events"
	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/internal/header"
	"github.com/vvka-141/csvingest/internal/merge"
	"github.com/vvka-141/csvingest/internal/metrics"
	"github.com/vvka-141/csvingest/internal/schema"
	"github.com/vvka-141/csvingest/internal/staging"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// IngestService loads configured tables from the ingestion tree into the
// target schema.
//
// Tables run one after another. Each table is one unit: one connection, one
// transaction, committed only when every file has been staged and merged.
// Thread-Safety: NOT safe for concurrent IngestTables calls on the same instance.
type IngestService struct {
	pool         Pool
	tables       *config.Tables
	csvRoot      string
	targetSchema string
	evolver      *schema.Evolver
	loader       *staging.Loader
	metrics      *metrics.Metrics
	publisher    events.Publisher
	clock        clockwork.Clock
	logger       csvingest.Logger
}

// NewIngestService creates an IngestService reading files below csvRoot and
// writing into targetSchema.
//
// Panics if any dependency is nil.
func NewIngestService(
	pool Pool,
	tables *config.Tables,
	csvRoot, targetSchema string,
	m *metrics.Metrics,
	publisher events.Publisher,
	clock clockwork.Clock,
	logger csvingest.Logger,
) *IngestService {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if tables == nil {
		panic("tables cannot be nil")
	}
	if m == nil {
		panic("metrics cannot be nil")
	}
	if publisher == nil {
		panic("publisher cannot be nil")
	}
	if clock == nil {
		panic("clock cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &IngestService{
		pool:         pool,
		tables:       tables,
		csvRoot:      csvRoot,
		targetSchema: targetSchema,
		evolver:      schema.NewEvolver(logger),
		loader:       staging.NewLoader(logger),
		metrics:      m,
		publisher:    publisher,
		clock:        clock,
		logger:       logger,
	}
}

// IngestTables ingests the named tables, or every configured table when
// names is empty, in configuration order.
//
// Unknown names fail before any database work. A failing table does not stop
// the others; their errors are joined and wrapped in csvingest.ErrIngestFailed.
func (s *IngestService) IngestTables(ctx context.Context, names []string, opts csvingest.IngestOptions) ([]csvingest.TableResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tables, err := s.tables.Lookup(names)
	if err != nil {
		return nil, err
	}

	results := make([]csvingest.TableResult, 0, len(tables))
	var errs []error
	for _, tbl := range tables {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tbl.Name, err))
			break
		}
		r, err := s.IngestTable(ctx, tbl, opts)
		results = append(results, r)
		if err != nil {
			s.logger.Error("table failed", "table", tbl.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", tbl.Name, err))
		}
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("%w: %w", csvingest.ErrIngestFailed, errors.Join(errs...))
	}
	return results, nil
}

// IngestTable runs one table unit: list files, analyze headers, then in a
// single transaction evolve the target, stage every file, drop duplicate
// keys and merge. A table without source files is skipped without error.
func (s *IngestService) IngestTable(ctx context.Context, tbl config.Table, opts csvingest.IngestOptions) (result csvingest.TableResult, err error) {
	start := s.clock.Now()
	result = csvingest.TableResult{
		Table:  tbl.Name,
		Target: schema.QualifiedName(s.targetSchema, tbl.Target()),
	}
	defer func() {
		result.Duration = s.clock.Since(start)
		result.Failed = err != nil
		s.metrics.ObserveTable(result, err)
		if !result.Skipped {
			s.publish(ctx, events.TableEvent(result, err, s.clock.Now()))
		}
	}()

	dir := filepath.Join(s.csvRoot, tbl.Folder)
	paths, err := source.List(dir, tbl.FilenameGlob)
	if err != nil {
		return result, fmt.Errorf("list source files: %w", err)
	}
	if len(paths) == 0 {
		s.logger.Info("no files, skipping table", "table", tbl.Name, "dir", dir, "glob", tbl.FilenameGlob)
		result.Skipped = true
		return result, nil
	}

	srcOpts := source.Options{
		Encoding:  tbl.Encoding,
		SkipRows:  tbl.SkipRows,
		Delimiter: tbl.DelimiterRune(),
	}
	plan, err := header.Analyze(paths, srcOpts)
	if err != nil {
		return result, err
	}
	if len(plan.Columns) == 0 {
		s.logger.Warn("no header columns, skipping table", "table", tbl.Name, "files", len(paths))
		result.Skipped = true
		return result, nil
	}

	var pk []string
	if tbl.Mode == csvingest.ModeUpsert {
		pk = tbl.PrimaryKey
		for _, k := range pk {
			if !slices.Contains(plan.Columns, k) {
				return result, fmt.Errorf("primary key column %q not found in the headers of %s", k, dir)
			}
		}
	}

	s.logger.Info("ingesting table", "table", tbl.Name, "target", result.Target,
		"files", len(paths), "columns", len(plan.Columns), "mode", tbl.Mode)

	chunkSize := tbl.EffectiveChunkSize(opts.ChunkSize)
	err = withTableTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		if err := s.evolver.EnsureSchema(ctx, tx, s.targetSchema); err != nil {
			return err
		}
		current, added, err := s.evolver.EnsureTarget(ctx, tx, s.targetSchema, tbl.Target(), plan.Columns, pk, opts.AutoAddColumns)
		if err != nil {
			return err
		}
		result.Columns = current
		result.AddedColumns = added
		result.IgnoredColumns = missingFrom(plan.Columns, current)

		if len(pk) > 0 {
			if _, err := s.evolver.EnsureUniqueKey(ctx, tx, s.targetSchema, tbl.Target(), pk); err != nil {
				return err
			}
		}

		stg, err := staging.CreateTable(ctx, tx, current, pk)
		if err != nil {
			return err
		}
		for _, p := range paths {
			f := staging.File{Path: p, Header: plan.Normalized[p], Options: srcOpts}
			fr, err := s.loader.LoadFile(ctx, tx, stg, f, chunkSize)
			if err != nil {
				return err
			}
			result.Files = append(result.Files, fr)
		}

		result.Duplicates, err = staging.Dedupe(ctx, tx, stg)
		if err != nil {
			return err
		}
		if result.Duplicates > 0 {
			s.logger.Info("dropped duplicate keys", "table", tbl.Name, "rows", result.Duplicates)
		}

		if tbl.Mode == csvingest.ModeAppend {
			result.RowsMerged, err = merge.Append(ctx, tx, stg, s.targetSchema, tbl.Target(), current)
		} else {
			result.RowsMerged, err = merge.Upsert(ctx, tx, stg, s.targetSchema, tbl.Target(), current, pk)
		}
		return err
	})
	if err != nil {
		return result, err
	}

	s.logger.Info("table loaded", "table", tbl.Name, "target", result.Target,
		"files", len(result.Files), "rows", result.RowsLoaded(), "merged", result.RowsMerged,
		"duplicates", result.Duplicates, "added_columns", result.AddedColumns)
	return result, nil
}

// publish sends e and logs failures. Events never fail ingestion.
func (s *IngestService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("event not published", "type", e.Type, "table", e.Table, "error", err)
	}
}

// missingFrom returns the columns of want that have is lacking, in want's order.
func missingFrom(want, have []string) []string {
	var out []string
	for _, c := range want {
		if !slices.Contains(have, c) {
			out = append(out, c)
		}
	}
	return out
}
