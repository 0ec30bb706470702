package staging

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/internal/logging"
	testhelpers "github.com/vvka-141/csvingest/internal/testing"
)

func TestColumnMapping(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		columns []string
		want    []int
	}{
		{"same order", []string{"id", "name"}, []string{"id", "name"}, []int{0, 1}},
		{"reordered", []string{"name", "id"}, []string{"id", "name"}, []int{1, 0}},
		{"missing column", []string{"id"}, []string{"id", "email"}, []int{0, -1}},
		{"extra field dropped", []string{"id", "junk", "name"}, []string{"id", "name"}, []int{0, 2}},
		{"last duplicate wins", []string{"id", "x", "x"}, []string{"id", "x"}, []int{0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnMapping(tt.header, tt.columns))
		})
	}
}

func TestRowSource_ChunksAndNulls(t *testing.T) {
	input := "1,a\n,b\n3,\n4\n5,e,extra\n"
	r := csv.NewReader(strings.NewReader(input))
	r.FieldsPerRecord = -1

	src := newRowSource(r, []int{0, 1}, []int{0}, 2)

	var chunks [][][]any
	for !src.done {
		src.startChunk()
		var chunk [][]any
		for src.Next() {
			v, err := src.Values()
			require.NoError(t, err)
			chunk = append(chunk, append([]any(nil), v...))
		}
		require.NoError(t, src.Err())
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 3)
	assert.Equal(t, [][]any{{"1", "a"}, {"3", nil}}, chunks[0], "row with empty key skipped, empty value is NULL")
	assert.Equal(t, [][]any{{"4", nil}, {"5", "e"}}, chunks[1], "short row padded, long row cut")
	assert.Empty(t, chunks[2])

	assert.Equal(t, int64(5), src.read)
	assert.Equal(t, int64(4), src.loaded)
	assert.Equal(t, int64(1), src.skipped)
}

func TestRowSource_NoKeyKeepsEveryRow(t *testing.T) {
	r := csv.NewReader(strings.NewReader(",\n,\n"))
	src := newRowSource(r, []int{0, 1}, nil, 10)
	src.startChunk()

	n := 0
	for src.Next() {
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(0), src.skipped)
}

func TestNewLoader_NilLoggerPanics(t *testing.T) {
	assert.Panics(t, func() { NewLoader(nil) })
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndDedupe_Integration(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	pool := testhelpers.GetTestPool(t, connString)
	ctx := context.Background()
	dir := t.TempDir()

	a := writeCSV(t, dir, "a.csv", "id,name\n1,Alice\n2,Bob\n,nobody\n")
	b := writeCSV(t, dir, "b.csv", "name,id,extra\nBobby,2,x\nCarol,3,\n")

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	table, err := CreateTable(ctx, tx, []string{"id", "name"}, []string{"id"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(table.Name, "stg_"))

	loader := NewLoader(logging.NewNullLogger())

	resA, err := loader.LoadFile(ctx, tx, table, File{Path: a, Header: []string{"id", "name"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resA.RowsRead)
	assert.Equal(t, int64(2), resA.RowsLoaded)
	assert.Equal(t, int64(1), resA.RowsSkipped)

	resB, err := loader.LoadFile(ctx, tx, table, File{Path: b, Header: []string{"name", "id", "extra"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resB.RowsLoaded)

	removed, err := Dedupe(ctx, tx, table)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err := tx.Query(ctx, "SELECT id, name FROM "+table.QualifiedName()+" ORDER BY id")
	require.NoError(t, err)
	var got [][2]string
	for rows.Next() {
		var id, name string
		require.NoError(t, rows.Scan(&id, &name))
		got = append(got, [2]string{id, name})
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][2]string{{"1", "Alice"}, {"2", "Bobby"}, {"3", "Carol"}}, got)

	t.Run("header drift is rejected", func(t *testing.T) {
		_, err := loader.LoadFile(ctx, tx, table, File{Path: a, Header: []string{"id"}}, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "changed since analysis")
	})
}

func TestDedupe_WithoutKeyIsNoop(t *testing.T) {
	removed, err := Dedupe(context.Background(), nil, &Table{Name: "stg_x", Columns: []string{"a"}})
	require.NoError(t, err)
	assert.Zero(t, removed)
}
