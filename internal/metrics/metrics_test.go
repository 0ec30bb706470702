package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

func TestObserveTable(t *testing.T) {
	m := NewForTesting()

	m.ObserveTable(csvingest.TableResult{
		Table: "orders",
		Files: []csvingest.FileResult{
			{Path: "a.csv", RowsLoaded: 10, RowsSkipped: 1},
			{Path: "b.csv", RowsLoaded: 5},
		},
		Duplicates: 2,
		Duration:   3 * time.Second,
	}, nil)
	m.ObserveTable(csvingest.TableResult{Table: "orders", Files: []csvingest.FileResult{{RowsLoaded: 99}}}, errors.New("boom"))
	m.ObserveTable(csvingest.TableResult{Table: "empty", Skipped: true}, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesLoaded))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.RowsLoaded), "failed runs load nothing")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("missing_key")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("duplicate_key")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TableRuns.WithLabelValues("orders", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TableRuns.WithLabelValues("orders", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TableRuns.WithLabelValues("empty", OutcomeSkipped)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.TableDuration))
}

func TestObserveRetentionAndSnapshot(t *testing.T) {
	m := NewForTesting()
	m.ObserveRetention("deleted", 3)
	m.ObserveRetention("deleted", 1)
	m.ObserveSnapshot(OutcomeSuccess)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RetentionFiles.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotsWritten.WithLabelValues(OutcomeSuccess)))
}

func TestWriteTextfile(t *testing.T) {
	m := NewForTesting()
	m.FilesLoaded.Add(3)

	path := filepath.Join(t.TempDir(), "textfile", "csvingest.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "csvingest_files_loaded_total 3"), string(data))

	assert.NoError(t, m.WriteTextfile(""))
}

func TestNew_RegistersOnce(t *testing.T) {
	m := NewForTesting()
	assert.Panics(t, func() { New(m.Registry()) }, "duplicate registration")
}
