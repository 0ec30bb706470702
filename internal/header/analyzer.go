// Package header builds the unified column list for a set of CSV files.
//
// Only header lines are read. A name that appears more than once in any
// single file is expanded to name_1..name_k everywhere, where k is its
// largest repeat count in one file; other names are kept as they are.
//
// Names are cut to PostgreSQL's identifier limit before anything else so the
// Column Set matches what the catalog reports on the next run.
package header

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/vvka-141/csvingest/internal/files/source"
)

// Plan is the result of header analysis.
type Plan struct {
	// Columns is the Column Set: unique names in first-seen order.
	Columns []string

	// Normalized maps each file path to its normalized header, which has
	// the same length as the raw header.
	Normalized map[string][]string

	// MaxRepeat is the largest repeat count of each base name within one file.
	MaxRepeat map[string]int
}

// Analyze reads the header of every file and builds the plan. Any read or
// decode failure aborts the analysis.
func Analyze(files []string, opts source.Options) (Plan, error) {
	headers := make([][]string, len(files))
	for i, f := range files {
		h, err := source.ReadHeader(f, opts)
		if err != nil {
			return Plan{}, fmt.Errorf("read header of %s: %w", f, err)
		}
		headers[i] = h
	}

	columns, normalized, maxRepeat, err := Build(headers)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{
		Columns:    columns,
		Normalized: make(map[string][]string, len(files)),
		MaxRepeat:  maxRepeat,
	}
	for i, f := range files {
		plan.Normalized[f] = normalized[i]
	}
	return plan, nil
}

// maxIdentifierLength is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// Build computes the Column Set, the per-header normalized names and the
// per-name maximum repetition from raw headers given in file order.
//
// It fails when two different header names end up as the same column, either
// because they share their first 63 bytes or because a generated name_k
// suffix equals another header name.
func Build(headers [][]string) (columns []string, normalized [][]string, maxRepeat map[string]int, err error) {
	maxRepeat = make(map[string]int)
	var order []string

	origin := make(map[string]string)
	cleaned := make([][]string, len(headers))
	for i, raw := range headers {
		full := baseNames(raw)
		cleaned[i] = make([]string, len(full))
		for j, name := range full {
			col := Identifier(name)
			if prev, ok := origin[col]; ok && prev != name {
				return nil, nil, nil, fmt.Errorf("header names %q and %q both become column %q after truncation to %d bytes",
					prev, name, col, maxIdentifierLength)
			}
			origin[col] = name
			cleaned[i][j] = col
		}
		counts := make(map[string]int, len(cleaned[i]))
		for _, name := range cleaned[i] {
			counts[name]++
		}
		for _, name := range cleaned[i] {
			if _, seen := maxRepeat[name]; !seen {
				order = append(order, name)
			}
			if counts[name] > maxRepeat[name] {
				maxRepeat[name] = counts[name]
			}
		}
	}

	owner := make(map[string]string)
	add := func(column, base string) error {
		if prev, ok := owner[column]; ok {
			return fmt.Errorf("column %q is produced by both header name %q and header name %q; rename one of them",
				column, origin[prev], origin[base])
		}
		owner[column] = base
		columns = append(columns, column)
		return nil
	}
	for _, name := range order {
		if maxRepeat[name] == 1 {
			if err := add(name, name); err != nil {
				return nil, nil, nil, err
			}
			continue
		}
		for k := 1; k <= maxRepeat[name]; k++ {
			if err := add(suffixed(name, k), name); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	normalized = make([][]string, len(cleaned))
	for i, names := range cleaned {
		out := make([]string, len(names))
		occurrence := make(map[string]int, len(names))
		for j, name := range names {
			if maxRepeat[name] == 1 {
				out[j] = name
				continue
			}
			occurrence[name]++
			out[j] = suffixed(name, occurrence[name])
		}
		normalized[i] = out
	}
	return columns, normalized, maxRepeat, nil
}

// baseNames replaces blank header fields with a positional name, since
// PostgreSQL rejects zero-length identifiers.
func baseNames(raw []string) []string {
	out := make([]string, len(raw))
	for i, name := range raw {
		if name == "" {
			name = "unnamed_" + strconv.Itoa(i)
		}
		out[i] = name
	}
	return out
}

// Identifier cuts name to PostgreSQL's identifier limit on a rune boundary,
// matching what the server stores for a longer name.
func Identifier(name string) string {
	return cut(name, maxIdentifierLength)
}

func cut(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	n := limit
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// suffixed appends _k, shortening name so the result still fits.
func suffixed(name string, k int) string {
	suffix := "_" + strconv.Itoa(k)
	return cut(name, maxIdentifierLength-len(suffix)) + suffix
}
