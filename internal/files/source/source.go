package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Options control how a source file is read.
type Options struct {
	// Encoding is the source text encoding. Empty means UTF-8.
	Encoding string

	// SkipRows is the number of physical lines before the header.
	SkipRows int

	// Delimiter separates fields. Zero means ','.
	Delimiter rune
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source is an open CSV file positioned after its header line.
// It is not safe for concurrent use.
type Source struct {
	path    string
	opts    Options
	header  []string
	br      *bufio.Reader
	closers []func() error
}

// Open opens path and reads its header.
func Open(path string, opts Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &Source{path: path, opts: opts, closers: []func() error{f.Close}}

	raw, closeFn, err := decompress(f, path)
	if err != nil {
		s.Close()
		return nil, err
	}
	if closeFn != nil {
		s.closers = append(s.closers, closeFn)
	}

	text, err := newDecodeReader(raw, path, opts.Encoding)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.br = bufio.NewReaderSize(text, 256*1024)

	if err := s.readPreamble(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// decompress picks a decompressor from the file extension.
func decompress(r io.Reader, path string) (io.Reader, func() error, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
		}
		return gz, gz.Close, nil
	case strings.HasSuffix(lower, ".zst"):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
		}
		return dec, func() error { dec.Close(); return nil }, nil
	default:
		return r, nil, nil
	}
}

func (s *Source) readPreamble() error {
	head, err := s.br.Peek(len(utf8BOM))
	if err != nil && err != io.EOF {
		return err
	}
	if bytes.Equal(head, utf8BOM) {
		if _, err := s.br.Discard(len(utf8BOM)); err != nil {
			return err
		}
	}

	for i := 0; i < s.opts.SkipRows; i++ {
		if _, err := s.br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}

	line, err := s.br.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	s.header = SplitHeader(line, s.opts.delimiter())
	return nil
}

// SplitHeader splits one header line on delim. Line terminators are removed,
// as are double quotes enclosing a whole field. Quoted delimiters are not
// recognised. An empty line yields no fields.
func SplitHeader(line string, delim rune) []string {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimPrefix(line, "\uFEFF")
	if line == "" {
		return nil
	}
	fields := strings.Split(line, string(delim))
	for i, f := range fields {
		if len(f) >= 2 && f[0] == '"' && f[len(f)-1] == '"' {
			fields[i] = strings.ReplaceAll(f[1:len(f)-1], `""`, `"`)
		}
	}
	return fields
}

// Path returns the file path.
func (s *Source) Path() string { return s.path }

// Header returns the raw header fields. Duplicate names are preserved.
func (s *Source) Header() []string { return s.header }

// Records returns a reader over the data rows. Rows may have any number of
// fields.
func (s *Source) Records() *csv.Reader {
	r := csv.NewReader(s.br)
	r.Comma = s.opts.delimiter()
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	return r
}

// CountLines counts the physical lines remaining after the header. A final
// line without a newline counts.
func (s *Source) CountLines() (int64, error) {
	buf := make([]byte, 64*1024)
	var n int64
	var last byte = '\n'
	for {
		m, err := s.br.Read(buf)
		if m > 0 {
			n += int64(bytes.Count(buf[:m], []byte{'\n'}))
			last = buf[m-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}

// Close releases the file and any decompressor.
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// ReadHeader returns the raw header of path without reading data rows.
func ReadHeader(path string, opts Options) ([]string, error) {
	s, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Header(), nil
}

// CountDataLines returns the number of lines after the header of path.
func CountDataLines(path string, opts Options) (int64, error) {
	s, err := Open(path, opts)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.CountLines()
}
