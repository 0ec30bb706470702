// Package metrics counts ingestion work in Prometheus collectors. The CLI is
// short-lived, so collectors are exported once per command to a node
// exporter textfile instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

const namespace = "csvingest"

// Table run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	FilesLoaded      prometheus.Counter
	RowsLoaded       prometheus.Counter
	RowsSkipped      *prometheus.CounterVec   // labels: reason={missing_key,duplicate_key}
	TableRuns        *prometheus.CounterVec   // labels: table, outcome={success,failure,skipped}
	TableDuration    *prometheus.HistogramVec // labels: table
	RetentionFiles   *prometheus.CounterVec   // labels: action={reported,archived,deleted,failed}
	SnapshotsWritten *prometheus.CounterVec   // labels: outcome={success,failure,skipped}
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		FilesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_loaded_total",
			Help:      "Source files copied into staging.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows copied into staging.",
		}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows that did not reach the target, by reason.",
		}, []string{"reason"}),
		TableRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_runs_total",
			Help:      "Table ingestion units by outcome.",
		}, []string{"table", "outcome"}),
		TableDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "table_duration_seconds",
			Help:      "Wall time of one table ingestion unit.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"table"}),
		RetentionFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_files_total",
			Help:      "Expired files handled by retention sweeps, by action.",
		}, []string{"action"}),
		SnapshotsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Parquet snapshots by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.FilesLoaded,
		m.RowsLoaded,
		m.RowsSkipped,
		m.TableRuns,
		m.TableDuration,
		m.RetentionFiles,
		m.SnapshotsWritten,
	)
	return m
}

// NewForTesting creates Metrics on a private registry.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveTable records one finished table ingestion unit.
func (m *Metrics) ObserveTable(r csvingest.TableResult, err error) {
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeFailure
	case r.Skipped:
		outcome = OutcomeSkipped
	}
	m.TableRuns.WithLabelValues(r.Table, outcome).Inc()
	m.TableDuration.WithLabelValues(r.Table).Observe(r.Duration.Seconds())
	if err != nil {
		return
	}

	var skipped int64
	for _, f := range r.Files {
		skipped += f.RowsSkipped
	}
	m.FilesLoaded.Add(float64(len(r.Files)))
	m.RowsLoaded.Add(float64(r.RowsLoaded()))
	m.RowsSkipped.WithLabelValues("missing_key").Add(float64(skipped))
	m.RowsSkipped.WithLabelValues("duplicate_key").Add(float64(r.Duplicates))
}

// ObserveRetention adds n files handled with action.
func (m *Metrics) ObserveRetention(action string, n int) {
	m.RetentionFiles.WithLabelValues(action).Add(float64(n))
}

// ObserveSnapshot records one snapshot attempt.
func (m *Metrics) ObserveSnapshot(outcome string) {
	m.SnapshotsWritten.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every collector to path in the text exposition
// format, atomically. An empty path does nothing.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
