package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/internal/logging"
)

var now = time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0o644))
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newSweeper() *Sweeper {
	return NewSweeper(clockwork.NewFakeClockAt(now), logging.NewNullLogger())
}

func seed(t *testing.T) (root string, old, oldGz, fresh, other string) {
	root = t.TempDir()
	day := 24 * time.Hour
	old = filepath.Join(root, "orders", "a.csv")
	oldGz = filepath.Join(root, "namespace=x", "table=y", "b.csv.gz")
	fresh = filepath.Join(root, "orders", "c.csv")
	other = filepath.Join(root, "orders", "notes.txt")
	touch(t, old, 61*day)
	touch(t, oldGz, 90*day)
	touch(t, fresh, 10*day)
	touch(t, other, 400*day)
	return
}

func TestSweep_Delete(t *testing.T) {
	root, old, oldGz, fresh, other := seed(t)

	report, err := newSweeper().Sweep(root, Options{MaxAge: 60 * 24 * time.Hour})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Count(ActionDeleted))
	assert.False(t, exists(old))
	assert.False(t, exists(oldGz))
	assert.True(t, exists(fresh))
	assert.True(t, exists(other), "non-matching names are never touched")
}

func TestSweep_DryRun(t *testing.T) {
	root, old, oldGz, _, _ := seed(t)

	report, err := newSweeper().Sweep(root, Options{MaxAge: 60 * 24 * time.Hour, DryRun: true, ArchiveRoot: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(ActionReported))
	assert.True(t, exists(old))
	assert.True(t, exists(oldGz))
	for _, e := range report.Entries {
		assert.NotEmpty(t, e.Dest)
	}
}

func TestSweep_Archive(t *testing.T) {
	root, old, _, fresh, _ := seed(t)
	archive := t.TempDir()

	report, err := newSweeper().Sweep(root, Options{MaxAge: 60 * 24 * time.Hour, ArchiveRoot: archive})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(ActionArchived))
	assert.False(t, exists(old))
	assert.True(t, exists(filepath.Join(archive, "orders", "a.csv")))
	assert.True(t, exists(filepath.Join(archive, "namespace=x", "table=y", "b.csv.gz")))
	assert.True(t, exists(fresh))
}

func TestSweep_MissingRoot(t *testing.T) {
	report, err := newSweeper().Sweep(filepath.Join(t.TempDir(), "nope"), Options{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, report.Entries)
}

func TestSweep_CustomPatterns(t *testing.T) {
	root, _, _, _, other := seed(t)

	report, err := newSweeper().Sweep(root, Options{MaxAge: 60 * 24 * time.Hour, Patterns: []string{"*.txt"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(ActionDeleted))
	assert.False(t, exists(other))
}

func TestNewSweeper_NilDependenciesPanic(t *testing.T) {
	assert.Panics(t, func() { NewSweeper(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { NewSweeper(clockwork.NewRealClock(), nil) })
}
