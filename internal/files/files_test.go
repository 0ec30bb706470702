package files

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCopyFile_KeepsModTime(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, time.April, 24, 12, 0, 0, 0, time.UTC)
	src := filepath.Join(dir, "src.csv")
	writeAged(t, src, "id\n1\n", mtime)
	dst := filepath.Join(dir, "deep", "dst.csv")

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))

	_, err = os.Stat(src)
	assert.NoError(t, err, "source is kept")
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.csv")
	writeAged(t, src, "x", time.Now())
	dst := filepath.Join(dir, "archive", "orders", "a.csv")

	require.NoError(t, MoveFile(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestGzipFile(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	src := filepath.Join(dir, "part.csv")
	writeAged(t, src, "id,name\n1,Alice\n", mtime)

	dst, err := GzipFile(src)
	require.NoError(t, err)
	assert.Equal(t, src+".gz", dst)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "original removed")

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Alice\n", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestGzipFile_ExistingTargetKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "part.csv")
	writeAged(t, src, "a", time.Now())
	require.NoError(t, os.WriteFile(src+".gz", []byte("old"), 0o644))

	_, err := GzipFile(src)
	require.ErrorIs(t, err, ErrExists)

	_, err = os.Stat(src)
	assert.NoError(t, err)
}
