package staging

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// File is one source file with its normalized header.
type File struct {
	Path    string
	Header  []string
	Options source.Options
}

// Loader copies source files into a staging table.
type Loader struct {
	logger csvingest.Logger
}

// NewLoader creates a Loader.
// Panics if logger is nil.
func NewLoader(logger csvingest.Logger) *Loader {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Loader{logger: logger}
}

// LoadFile streams f into t in chunks of chunkSize rows.
//
// Each row is mapped by name from f.Header onto t.Columns: staging columns the
// file lacks are NULL, file columns the table lacks are dropped, fields past
// the end of the header are ignored and short rows are padded with NULL.
// Empty strings load as NULL. Rows with a NULL key column are counted as
// skipped.
func (l *Loader) LoadFile(ctx context.Context, q csvingest.CopyQuerier, t *Table, f File, chunkSize int) (csvingest.FileResult, error) {
	result := csvingest.FileResult{Path: f.Path}
	if chunkSize <= 0 {
		chunkSize = csvingest.DefaultChunkSize
	}

	src, err := source.Open(f.Path, f.Options)
	if err != nil {
		return result, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer src.Close()

	if len(src.Header()) != len(f.Header) {
		return result, fmt.Errorf("header of %s changed since analysis (%d fields, expected %d)",
			f.Path, len(src.Header()), len(f.Header))
	}

	rows := newRowSource(src.Records(), columnMapping(f.Header, t.Columns), keyPositions(t.Columns, t.PrimaryKey), chunkSize)
	for chunk := 1; !rows.done; chunk++ {
		rows.startChunk()
		n, err := q.CopyFrom(ctx, t.Identifier(), t.Columns, rows)
		if err != nil {
			return result, fmt.Errorf("copy %s into staging: %w", f.Path, err)
		}
		if n > 0 {
			l.logger.Debug("copied chunk", "file", f.Path, "chunk", chunk, "rows", n)
		}
	}

	result.RowsRead = rows.read
	result.RowsLoaded = rows.loaded
	result.RowsSkipped = rows.skipped
	if rows.skipped > 0 {
		l.logger.Warn("skipped rows without primary key", "file", f.Path, "rows", rows.skipped, "primary_key", t.PrimaryKey)
	}
	l.logger.Info("loaded file", "file", f.Path, "rows", rows.loaded, "skipped", rows.skipped)
	return result, nil
}

// columnMapping returns, for each staging column, the index of the field that
// feeds it, or -1. When a header repeats a name the last field wins.
func columnMapping(header, columns []string) []int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	mapping := make([]int, len(columns))
	for i, c := range columns {
		if j, ok := pos[c]; ok {
			mapping[i] = j
		} else {
			mapping[i] = -1
		}
	}
	return mapping
}

func keyPositions(columns, pkCols []string) []int {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	out := make([]int, 0, len(pkCols))
	for _, k := range pkCols {
		if i, ok := pos[k]; ok {
			out = append(out, i)
		}
	}
	return out
}

// rowSource implements pgx.CopyFromSource over a CSV reader. It yields at most
// chunkSize rows per COPY and records counts across chunks.
type rowSource struct {
	records   *csv.Reader
	mapping   []int
	keys      []int
	chunkSize int

	values  []any
	emitted int
	done    bool
	err     error

	read, loaded, skipped int64
}

func newRowSource(records *csv.Reader, mapping, keys []int, chunkSize int) *rowSource {
	return &rowSource{
		records:   records,
		mapping:   mapping,
		keys:      keys,
		chunkSize: chunkSize,
		values:    make([]any, len(mapping)),
	}
}

func (s *rowSource) startChunk() { s.emitted = 0 }

func (s *rowSource) Next() bool {
	if s.done || s.emitted >= s.chunkSize {
		return false
	}
	for {
		rec, err := s.records.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			return false
		}
		if err != nil {
			s.err = err
			s.done = true
			return false
		}
		s.read++

		if !s.fill(rec) {
			s.skipped++
			continue
		}
		s.loaded++
		s.emitted++
		return true
	}
}

// fill maps rec into s.values and reports whether every key column is set.
func (s *rowSource) fill(rec []string) bool {
	for i, j := range s.mapping {
		if j < 0 || j >= len(rec) || rec[j] == "" {
			s.values[i] = nil
		} else {
			s.values[i] = rec[j]
		}
	}
	for _, k := range s.keys {
		if s.values[k] == nil {
			return false
		}
	}
	return true
}

func (s *rowSource) Values() ([]any, error) { return s.values, nil }

func (s *rowSource) Err() error { return s.err }
