// Package source opens CSV source files for header analysis and staging.
//
// A source file may be plain, gzip (.gz) or zstd (.zst) compressed and in any
// encoding known to golang.org/x/text. Everything downstream of Open sees
// UTF-8 text with the byte-order mark and the configured number of leading
// metadata rows already removed.
//
// The header is read as one physical line and split on the delimiter without
// a quote-aware parse, so duplicate column names survive untouched for the
// header analyzer. Data rows are then parsed with encoding/csv.
package source
