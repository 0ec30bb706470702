package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/internal/events"
	"github.com/vvka-141/csvingest/internal/metrics"
	"github.com/vvka-141/csvingest/internal/snapshot"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// SnapshotService exports the targets of configured tables to Parquet.
type SnapshotService struct {
	pool         Pool
	tables       *config.Tables
	targetSchema string
	exporter     *snapshot.Exporter
	metrics      *metrics.Metrics
	publisher    events.Publisher
	clock        clockwork.Clock
	logger       csvingest.Logger
}

// NewSnapshotService creates a SnapshotService.
// Panics if any dependency is nil.
func NewSnapshotService(
	pool Pool,
	tables *config.Tables,
	targetSchema string,
	exporter *snapshot.Exporter,
	m *metrics.Metrics,
	publisher events.Publisher,
	clock clockwork.Clock,
	logger csvingest.Logger,
) *SnapshotService {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if tables == nil {
		panic("tables cannot be nil")
	}
	if exporter == nil {
		panic("exporter cannot be nil")
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
	return &SnapshotService{
		pool:         pool,
		tables:       tables,
		targetSchema: targetSchema,
		exporter:     exporter,
		metrics:      m,
		publisher:    publisher,
		clock:        clock,
		logger:       logger,
	}
}

// Snapshot exports the named tables, or every configured table when names
// is empty. Failures are collected and do not stop the remaining tables.
func (s *SnapshotService) Snapshot(ctx context.Context, names []string) ([]snapshot.Result, error) {
	tables, err := s.tables.Lookup(names)
	if err != nil {
		return nil, err
	}

	var results []snapshot.Result
	var errs []error
	for _, tbl := range tables {
		r, err := s.SnapshotTable(ctx, tbl)
		results = append(results, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tbl.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

// SnapshotTable exports the target of tbl.
func (s *SnapshotService) SnapshotTable(ctx context.Context, tbl config.Table) (snapshot.Result, error) {
	var result snapshot.Result
	err := withConn(ctx, s.pool, func(conn *pgxpool.Conn) error {
		var err error
		result, err = s.exporter.Export(ctx, conn, s.targetSchema, tbl.Target())
		return err
	})

	switch {
	case err != nil:
		s.metrics.ObserveSnapshot(metrics.OutcomeFailure)
		s.logger.Error("snapshot failed", "table", tbl.Name, "error", err)
		return result, err
	case result.Skipped:
		s.metrics.ObserveSnapshot(metrics.OutcomeSkipped)
		return result, nil
	}

	s.metrics.ObserveSnapshot(metrics.OutcomeSuccess)
	location := result.Location
	if location == "" {
		location = result.Path
	}
	e := events.SnapshotEvent(tbl.Target(), location, result.Rows, s.clock.Now())
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("event not published", "type", e.Type, "table", e.Table, "error", err)
	}
	return result, nil
}
