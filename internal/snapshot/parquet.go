// Package snapshot exports target tables to Parquet files, optionally
// uploading them to S3.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ParquetFile writes rows of nullable strings to a Parquet file whose columns
// are optional UTF8 strings in the order given. The file appears at its final
// path only after Close succeeds.
type ParquetFile struct {
	path    string
	tmp     *os.File
	writer  *parquet.Writer
	rowType reflect.Type
	columns int
}

// rowType builds a struct type with one optional string field per column so
// the Parquet schema keeps the column order.
func rowType(columns []string) reflect.Type {
	fields := make([]reflect.StructField, len(columns))
	for i, c := range columns {
		fields[i] = reflect.StructField{
			Name: "C" + strconv.Itoa(i),
			Type: reflect.TypeOf((*string)(nil)),
			Tag:  reflect.StructTag("parquet:" + strconv.Quote(parquetName(c)+",optional")),
		}
	}
	return reflect.StructOf(fields)
}

// parquetName replaces characters the struct tag syntax cannot carry.
func parquetName(column string) string {
	return strings.ReplaceAll(column, ",", "_")
}

// NewParquetFile creates the parent directory of path and opens a writer.
func NewParquetFile(path string, columns []string) (*ParquetFile, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("parquet file %s needs at least one column", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	typ := rowType(columns)
	schema := parquet.SchemaOf(reflect.New(typ).Interface())
	return &ParquetFile{
		path:    path,
		tmp:     tmp,
		writer:  parquet.NewWriter(tmp, schema),
		rowType: typ,
		columns: len(columns),
	}, nil
}

// Write appends one row. A nil value is written as NULL.
func (p *ParquetFile) Write(values []*string) error {
	if len(values) != p.columns {
		return fmt.Errorf("row has %d values, want %d", len(values), p.columns)
	}
	row := reflect.New(p.rowType).Elem()
	for i, v := range values {
		row.Field(i).Set(reflect.ValueOf(v))
	}
	return p.writer.Write(row.Addr().Interface())
}

// Close flushes the file and moves it into place.
func (p *ParquetFile) Close() error {
	if err := p.writer.Close(); err != nil {
		p.abort()
		return fmt.Errorf("finish %s: %w", p.path, err)
	}
	if err := p.tmp.Close(); err != nil {
		os.Remove(p.tmp.Name())
		return fmt.Errorf("close %s: %w", p.path, err)
	}
	if err := os.Rename(p.tmp.Name(), p.path); err != nil {
		os.Remove(p.tmp.Name())
		return fmt.Errorf("move snapshot into place: %w", err)
	}
	return nil
}

// abort discards a partially written file.
func (p *ParquetFile) abort() {
	p.tmp.Close()
	os.Remove(p.tmp.Name())
}

// WriteParquet writes rows to path in one go.
func WriteParquet(path string, columns []string, rows [][]*string) error {
	f, err := NewParquetFile(path, columns)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			f.abort()
			return err
		}
	}
	return f.Close()
}
