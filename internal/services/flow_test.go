package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/internal/checksum"
	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/internal/landing"
	"github.com/vvka-141/csvingest/internal/logging"
	"github.com/vvka-141/csvingest/internal/snapshot"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

const flowTablesYAML = `
tables:
  people:
    folder: namespace=crm/table=people
    primary_key: id
`

type flowFixture struct {
	flow   *FlowService
	clock  *clockwork.FakeClock
	paths  config.Paths
	ingest *ingestFixture
}

func newFlow(t *testing.T, ingest *ingestFixture, pool Pool) *flowFixture {
	t.Helper()
	base := t.TempDir()
	paths := config.Paths{
		CSVRoot:        ingest.csvRoot,
		ParquetRoot:    filepath.Join(base, "parquet"),
		LandingRoot:    filepath.Join(base, "landing"),
		ManualDropRoot: filepath.Join(base, "manual_drop"),
	}
	clock := clockwork.NewFakeClockAt(testNow)
	logger := logging.NewNullLogger()

	zone := landing.NewZone(paths.LandingRoot, clock, checksum.New(), logger)
	exporter := snapshot.NewExporter(paths.ParquetRoot, clock, nil, logger)
	snaps := NewSnapshotService(pool, ingest.svc.tables, ingest.schema, exporter, ingest.metrics, ingest.publisher, clock, logger)

	return &flowFixture{
		flow:   NewFlowService(zone, ingest.svc, snaps, ingest.svc.tables, paths, logger),
		clock:  clock,
		paths:  paths,
		ingest: ingest,
	}
}

func newUnitFlow(t *testing.T) (*flowFixture, *unreachablePool) {
	t.Helper()
	pool := &unreachablePool{}
	ingest := newUnitIngest(t, pool)
	ingest.svc.tables = mustTables(t, flowTablesYAML)
	return newFlow(t, ingest, pool), pool
}

func (f *flowFixture) drop(t *testing.T, ns, table, name, content string) string {
	t.Helper()
	return writeCSV(t, landing.TableDir(f.paths.ManualDropRoot, ns, table), name, content)
}

func TestRunOne_UnknownTable(t *testing.T) {
	f, pool := newUnitFlow(t)
	_, err := f.flow.RunOne(context.Background(), FlowRequest{Namespace: "crm", Table: "ghost"})
	assert.ErrorIs(t, err, csvingest.ErrTableNotConfigured)
	assert.Zero(t, pool.calls)
}

func TestRunOne_DryRunStopsAfterImport(t *testing.T) {
	f, pool := newUnitFlow(t)
	dropped := f.drop(t, "crm", "people", "a.csv", "id,name\n1,Alice\n")

	result, err := f.flow.RunOne(context.Background(), FlowRequest{Namespace: "crm", Table: "people", Move: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{dropped}, result.Import.Sources)
	assert.FileExists(t, dropped)
	assert.NoDirExists(t, result.Import.Batch.Dir)
	assert.Zero(t, pool.calls)
}

func TestRunOne_EmptyDrop(t *testing.T) {
	f, pool := newUnitFlow(t)
	require.NoError(t, os.MkdirAll(landing.TableDir(f.paths.ManualDropRoot, "crm", "people"), 0o755))

	result, err := f.flow.RunOne(context.Background(), FlowRequest{Namespace: "crm", Table: "people"})
	require.NoError(t, err)
	assert.True(t, result.Import.Empty())
	assert.Zero(t, pool.calls)
}

func TestRunAuto_SkipsEmptyAndUnconfiguredDrops(t *testing.T) {
	f, pool := newUnitFlow(t)
	f.drop(t, "crm", "ghost", "a.csv", "id\n1\n")
	require.NoError(t, os.MkdirAll(landing.TableDir(f.paths.ManualDropRoot, "crm", "people"), 0o755))

	results, err := f.flow.RunAuto(context.Background(), FlowRequest{Move: true})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, pool.calls)
}

func TestReplay_InvalidSince(t *testing.T) {
	f, _ := newUnitFlow(t)
	_, err := f.flow.Replay(context.Background(), ReplayRequest{Since: "2024-01-01"})
	assert.ErrorIs(t, err, csvingest.ErrInvalidConfig)
}

func TestReplay_SkipsUnconfiguredTables(t *testing.T) {
	f, pool := newUnitFlow(t)
	batch := landing.BatchDir(f.paths.LandingRoot, "crm", "ghost", "20240101", "20240101T000000Z_0000abcd")
	require.NoError(t, os.MkdirAll(filepath.Join(batch, "parts"), 0o755))

	results, err := f.flow.Replay(context.Background(), ReplayRequest{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, pool.calls)
}

func TestNewFlowService_NilDependencies(t *testing.T) {
	f, _ := newUnitFlow(t)
	assert.PanicsWithValue(t, "zone cannot be nil", func() {
		NewFlowService(nil, f.ingest.svc, f.flow.snapshots, f.ingest.svc.tables, f.paths, logging.NewNullLogger())
	})
	assert.PanicsWithValue(t, "ingest cannot be nil", func() {
		NewFlowService(f.flow.zone, nil, f.flow.snapshots, f.ingest.svc.tables, f.paths, logging.NewNullLogger())
	})
}

func TestFlow_DropToSnapshot_Integration(t *testing.T) {
	db := newDBIngest(t, flowTablesYAML)
	f := newFlow(t, db.ingestFixture, db.pool)
	ctx := context.Background()

	first := f.drop(t, "crm", "people", "people.csv", "id,name\n1,Alice\n2,Bob\n")
	result, err := f.flow.RunOne(ctx, FlowRequest{
		Namespace: "crm", Table: "people", Move: true, AutoAddColumns: true, Snapshot: true,
	})
	require.NoError(t, err)

	assert.NoFileExists(t, first, "moved into the landing zone")
	require.NotNil(t, result.Import.Manifest)
	assert.Equal(t, int64(2), result.Import.Manifest.Files[0].Rows)
	require.Len(t, result.Promote.Files, 1)
	assert.Equal(t, int64(2), result.Table.RowsMerged)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, filepath.Join(f.paths.ParquetRoot, "20240426", "people.parquet"), result.Snapshot.Path)
	assert.Equal(t, int64(2), result.Snapshot.Rows)
	assert.FileExists(t, result.Snapshot.Path)

	f.clock.Advance(time.Hour)
	f.drop(t, "crm", "people", "people.csv", "id,name,email\n2,Bobby,bob@example.com\n3,Carol,\n")
	results, err := f.flow.RunAuto(ctx, FlowRequest{Move: true, AutoAddColumns: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"email"}, results[0].Table.AddedColumns)

	want := [][]string{
		{"1", "Alice", "<nil>"},
		{"2", "Bobby", "bob@example.com"},
		{"3", "Carol", "<nil>"},
	}
	assert.Equal(t, want, db.rows(t, "people", "id, name, email"))

	t.Run("replay rebuilds from every batch", func(t *testing.T) {
		ingestDir := landing.IngestDir(f.paths.CSVRoot, "crm", "people")
		writeCSV(t, ingestDir, "stray.csv", "id,name\n9,Stray\n")

		replayed, err := f.flow.Replay(ctx, ReplayRequest{Namespace: "crm", Table: "people"})
		require.NoError(t, err)
		require.Len(t, replayed, 1)
		assert.Equal(t, 2, replayed[0].Batches)
		assert.NoFileExists(t, filepath.Join(ingestDir, "stray.csv"))
		assert.Equal(t, want, db.rows(t, "people", "id, name, email"))
	})
}
