package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/internal/landing"
	"github.com/vvka-141/csvingest/internal/snapshot"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// FlowRequest drives one manual drop from import to snapshot.
type FlowRequest struct {
	Namespace string
	Table     string

	// Src defaults to <manual drop root>/namespace=<ns>/table=<t>.
	Src string

	RunDate  string
	Encoding string
	Pattern  string
	Move     bool
	DryRun   bool

	AutoAddColumns bool
	ChunkSize      int
	Snapshot       bool
}

// FlowResult records what each step of a flow produced.
type FlowResult struct {
	Import   landing.ImportResult
	Promote  landing.PromoteResult
	Table    csvingest.TableResult
	Snapshot *snapshot.Result
}

// ReplayRequest selects what Replay rebuilds. Empty Namespace or Table
// match every landed one.
type ReplayRequest struct {
	Namespace string
	Table     string
	Since     string // YYYYMMDD, inclusive
	Snapshot  bool
	ChunkSize int
}

// ReplayResult is the outcome for one namespace/table.
type ReplayResult struct {
	Pair     landing.Pair
	Batches  int
	Table    csvingest.TableResult
	Snapshot *snapshot.Result
}

// FlowService chains the landing zone, ingestion and snapshots.
type FlowService struct {
	zone           *landing.Zone
	ingest         *IngestService
	snapshots      *SnapshotService
	tables         *config.Tables
	csvRoot        string
	manualDropRoot string
	logger         csvingest.Logger
}

// NewFlowService creates a FlowService.
// Panics if any dependency is nil.
func NewFlowService(
	zone *landing.Zone,
	ingest *IngestService,
	snapshots *SnapshotService,
	tables *config.Tables,
	paths config.Paths,
	logger csvingest.Logger,
) *FlowService {
	if zone == nil {
		panic("zone cannot be nil")
	}
	if ingest == nil {
		panic("ingest cannot be nil")
	}
	if snapshots == nil {
		panic("snapshots cannot be nil")
	}
	if tables == nil {
		panic("tables cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &FlowService{
		zone:           zone,
		ingest:         ingest,
		snapshots:      snapshots,
		tables:         tables,
		csvRoot:        paths.CSVRoot,
		manualDropRoot: paths.ManualDropRoot,
		logger:         logger,
	}
}

// RunOne imports a manual drop as a new landing batch, validates the
// table's landing tree, promotes the latest batch, ingests the table and
// snapshots its target. The table name doubles as the configuration entry.
// A dry run stops after listing what would be imported; an empty drop
// stops after the import step.
func (f *FlowService) RunOne(ctx context.Context, req FlowRequest) (FlowResult, error) {
	var result FlowResult

	tbl, ok := f.tables.Get(req.Table)
	if !ok {
		return result, fmt.Errorf("%w: %s", csvingest.ErrTableNotConfigured, req.Table)
	}
	if req.Src == "" {
		req.Src = landing.TableDir(f.manualDropRoot, req.Namespace, req.Table)
	}
	if want := landing.IngestDir("", req.Namespace, req.Table); filepath.Clean(tbl.Folder) != want {
		f.logger.Warn("table folder does not match the promote location", "table", tbl.Name, "folder", tbl.Folder, "promote_dir", want)
	}

	imported, err := f.zone.Import(ctx, landing.ImportRequest{
		Src:       req.Src,
		Namespace: req.Namespace,
		Table:     req.Table,
		RunDate:   req.RunDate,
		Encoding:  req.Encoding,
		Pattern:   req.Pattern,
		Move:      req.Move,
		DryRun:    req.DryRun,
		Latest:    true,
	})
	result.Import = imported
	if err != nil {
		return result, fmt.Errorf("land-import: %w", err)
	}
	if req.DryRun || imported.Empty() {
		return result, nil
	}
	pair := landing.Pair{Namespace: imported.Batch.Namespace, Table: imported.Batch.Table}

	report, err := f.zone.Validate(landing.TableDir(f.zone.Root(), pair.Namespace, pair.Table))
	if err != nil {
		return result, err
	}
	if err := report.Err(); err != nil {
		return result, err
	}

	runDate, err := f.zone.LatestRunDate(pair.Namespace, pair.Table)
	if err != nil {
		return result, err
	}
	result.Promote, err = f.zone.Promote(landing.PromoteRequest{
		Namespace: pair.Namespace,
		Table:     pair.Table,
		RunDate:   runDate,
		BatchID:   landing.LatestBatch,
	}, f.csvRoot)
	if err != nil {
		return result, fmt.Errorf("promote: %w", err)
	}

	result.Table, err = f.ingest.IngestTable(ctx, tbl, csvingest.IngestOptions{
		AutoAddColumns: req.AutoAddColumns,
		ChunkSize:      req.ChunkSize,
	})
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", csvingest.ErrIngestFailed, tbl.Name, err)
	}

	if req.Snapshot {
		snap, err := f.snapshots.SnapshotTable(ctx, tbl)
		if err != nil {
			return result, fmt.Errorf("snapshot: %w", err)
		}
		result.Snapshot = &snap
	}
	return result, nil
}

// RunAuto runs RunOne for every namespace=*/table=* directory under the
// manual drop root that holds matching files. Namespace, Table and Src of
// tmpl are ignored. A failing drop is logged and the others still run.
func (f *FlowService) RunAuto(ctx context.Context, tmpl FlowRequest) ([]FlowResult, error) {
	pattern := tmpl.Pattern
	if pattern == "" {
		pattern = csvingest.DefaultFilenameGlob
	}

	pairs, err := landing.Discover(f.manualDropRoot)
	if err != nil {
		return nil, fmt.Errorf("discover manual drops: %w", err)
	}

	var results []FlowResult
	var errs []error
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		src := landing.TableDir(f.manualDropRoot, p.Namespace, p.Table)
		found, err := source.List(src, pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		if len(found) == 0 {
			f.logger.Debug("no files in drop", "path", src)
			continue
		}
		if _, ok := f.tables.Get(p.Table); !ok {
			f.logger.Warn("drop for unconfigured table skipped", "namespace", p.Namespace, "table", p.Table)
			continue
		}

		req := tmpl
		req.Namespace, req.Table, req.Src = p.Namespace, p.Table, src
		r, err := f.RunOne(ctx, req)
		results = append(results, r)
		if err != nil {
			f.logger.Error("flow failed", "namespace", p.Namespace, "table", p.Table, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("%w: %w", csvingest.ErrIngestFailed, errors.Join(errs...))
	}
	return results, nil
}

// Replay rebuilds tables from the landing zone. For each selected
// namespace/table the ingestion directory is emptied, every batch since
// req.Since is copied into it in creation order and the table is ingested
// once with column auto-add. Tables missing from configuration are skipped.
func (f *FlowService) Replay(ctx context.Context, req ReplayRequest) ([]ReplayResult, error) {
	if req.Since != "" {
		if err := landing.ValidateRunDate(req.Since); err != nil {
			return nil, err
		}
	}

	pairs, err := f.replayTargets(req)
	if err != nil {
		return nil, err
	}

	var results []ReplayResult
	var errs []error
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		tbl, ok := f.tables.Get(p.Table)
		if !ok {
			f.logger.Warn("replay of unconfigured table skipped", "namespace", p.Namespace, "table", p.Table)
			continue
		}

		r, err := f.replayOne(ctx, p, tbl, req)
		results = append(results, r)
		if err != nil {
			f.logger.Error("replay failed", "namespace", p.Namespace, "table", p.Table, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("%w: %w", csvingest.ErrIngestFailed, errors.Join(errs...))
	}
	return results, nil
}

func (f *FlowService) replayTargets(req ReplayRequest) ([]landing.Pair, error) {
	if req.Namespace != "" && req.Table != "" {
		return []landing.Pair{{Namespace: req.Namespace, Table: req.Table}}, nil
	}
	all, err := f.zone.Discover()
	if err != nil {
		return nil, err
	}
	var pairs []landing.Pair
	for _, p := range all {
		if req.Namespace != "" && p.Namespace != req.Namespace {
			continue
		}
		if req.Table != "" && p.Table != req.Table {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func (f *FlowService) replayOne(ctx context.Context, p landing.Pair, tbl config.Table, req ReplayRequest) (ReplayResult, error) {
	result := ReplayResult{Pair: p}

	batches, err := f.zone.Batches(p.Namespace, p.Table, req.Since)
	if err != nil {
		return result, err
	}
	if len(batches) == 0 {
		f.logger.Warn("no batches to replay", "namespace", p.Namespace, "table", p.Table, "since", req.Since)
		return result, nil
	}

	dest := landing.IngestDir(f.csvRoot, p.Namespace, p.Table)
	if err := os.RemoveAll(dest); err != nil {
		return result, fmt.Errorf("wipe %s: %w", dest, err)
	}
	f.logger.Info("replaying batches", "namespace", p.Namespace, "table", p.Table, "batches", len(batches), "dest", dest)
	for _, b := range batches {
		if _, err := f.zone.CopyBatch(b, f.csvRoot); err != nil {
			return result, err
		}
		result.Batches++
	}

	result.Table, err = f.ingest.IngestTable(ctx, tbl, csvingest.IngestOptions{
		AutoAddColumns: true,
		ChunkSize:      req.ChunkSize,
	})
	if err != nil {
		return result, err
	}

	if req.Snapshot {
		snap, err := f.snapshots.SnapshotTable(ctx, tbl)
		if err != nil {
			return result, fmt.Errorf("snapshot: %w", err)
		}
		result.Snapshot = &snap
	}
	return result, nil
}
