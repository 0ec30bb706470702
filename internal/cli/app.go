package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vvka-141/csvingest/internal/checksum"
	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/internal/db"
	"github.com/vvka-141/csvingest/internal/events"
	"github.com/vvka-141/csvingest/internal/landing"
	"github.com/vvka-141/csvingest/internal/logging"
	"github.com/vvka-141/csvingest/internal/metrics"
	"github.com/vvka-141/csvingest/internal/services"
	"github.com/vvka-141/csvingest/internal/snapshot"
)

// defaultTimeout guards database commands against hangs. Statement-level
// limits belong in the server configuration.
const defaultTimeout = time.Hour

// app is the per-invocation wiring shared by all commands.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	clock    clockwork.Clock
	metrics  *metrics.Metrics
}

// newApp loads .env and the environment and sets up logging and metrics.
func newApp() (*app, error) {
	_ = godotenv.Load()

	logger := logging.NewConsoleLogger(rootFlags.verbose, rootFlags.logFormat)
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	return &app{
		settings: settings,
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}, nil
}

// tables loads the tables file named by --config or TABLES_CONFIG.
func (a *app) tables() (*config.Tables, error) {
	path := rootFlags.configPath
	if path == "" {
		path = a.settings.TablesConfig
	}
	tables, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables configuration: %w", err)
	}
	a.logger.Debug("loaded tables configuration", "path", path, "tables", tables.Names())
	return tables, nil
}

func (a *app) zone() *landing.Zone {
	return landing.NewZone(a.settings.Paths.LandingRoot, a.clock, checksum.New(), a.logger)
}

// connect opens a pool with the connector for POSTGRES_AUTH. The returned
// func closes the pool and the connector.
func (a *app) connect(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connConfig, err := db.ConfigFromSettings(a.settings.Postgres)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("connecting", "host", connConfig.Host, "port", connConfig.Port,
		"database", connConfig.Database, "user", connConfig.Username, "auth", connConfig.AuthMethod.String())

	connector, err := db.NewConnector(connConfig, a.logger)
	if err != nil {
		return nil, nil, err
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		if c, ok := connector.(io.Closer); ok {
			c.Close()
		}
		return nil, nil, err
	}
	return pool, func() {
		pool.Close()
		if c, ok := connector.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.Warn("failed to close connector", "error", err)
			}
		}
	}, nil
}

// serviceSet is everything a database command needs.
type serviceSet struct {
	ingest    *services.IngestService
	snapshots *services.SnapshotService
	flow      *services.FlowService
	close     func()
}

func (a *app) services(ctx context.Context, tables *config.Tables) (*serviceSet, error) {
	var uploader snapshot.Uploader
	if uri := a.settings.Sinks.SnapshotS3URI; uri != "" {
		s3u, err := snapshot.NewS3Uploader(ctx, uri, a.settings.Postgres.AWSRegion)
		if err != nil {
			return nil, err
		}
		uploader = s3u
	}

	pool, closePool, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}

	publisher := events.New(a.settings.Sinks.KafkaBrokers, a.settings.Sinks.KafkaTopic)
	schemaName := a.settings.TargetSchema
	exporter := snapshot.NewExporter(a.settings.Paths.ParquetRoot, a.clock, uploader, a.logger)

	set := &serviceSet{
		ingest: services.NewIngestService(pool, tables, a.settings.Paths.CSVRoot, schemaName,
			a.metrics, publisher, a.clock, a.logger),
		snapshots: services.NewSnapshotService(pool, tables, schemaName, exporter,
			a.metrics, publisher, a.clock, a.logger),
	}
	set.flow = services.NewFlowService(a.zone(), set.ingest, set.snapshots, tables, a.settings.Paths, a.logger)
	set.close = func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", "error", err)
		}
		closePool()
	}
	return set, nil
}

// finish writes the metrics textfile when METRICS_TEXTFILE is set.
func (a *app) finish() {
	if err := a.metrics.WriteTextfile(a.settings.Sinks.MetricsTextfile); err != nil {
		a.logger.Warn("failed to write metrics", "error", err)
	}
}

// commandContext returns a context cancelled after timeout or on SIGINT or
// SIGTERM. An interrupted table transaction is rolled back.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
