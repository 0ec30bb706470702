// Package landing manages the landing zone: manually dropped CSV files are
// imported as immutable batches with a manifest, validated, and promoted into
// the ingestion tree.
//
// A batch lives at
//
//	<root>/namespace=<ns>/table=<t>/run_date=<YYYYMMDD>/batch_id=<id>/
//	    manifest.json
//	    parts/*.csv
//
// Batch ids sort lexicographically in creation order.
package landing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vvka-141/csvingest/internal/checksum"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

const (
	namespacePrefix = "namespace="
	tablePrefix     = "table="
	runDatePrefix   = "run_date="
	batchPrefix     = "batch_id="

	partsDir     = "parts"
	manifestFile = "manifest.json"
	latestLink   = "latest"

	// LatestBatch selects the newest batch of a run date.
	LatestBatch = "latest"
)

// batchTimeLayout is the UTC timestamp that starts every batch id.
const batchTimeLayout = "20060102T150405Z"

// NewBatchID returns <UTC timestamp>_<8 hex chars> for now.
func NewBatchID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format(batchTimeLayout) + "_" + random
}

// TableDir returns <root>/namespace=<ns>/table=<t>.
func TableDir(root, namespace, table string) string {
	return filepath.Join(root, namespacePrefix+namespace, tablePrefix+table)
}

// BatchDir returns the directory of one batch.
func BatchDir(root, namespace, table, runDate, batchID string) string {
	return filepath.Join(TableDir(root, namespace, table), runDatePrefix+runDate, batchPrefix+batchID)
}

// InferPartition reads namespace= and table= segments from path. The first
// occurrence of each wins; missing segments are returned empty.
func InferPartition(path string) (namespace, table string) {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if v, ok := strings.CutPrefix(part, namespacePrefix); ok && namespace == "" {
			namespace = v
		}
		if v, ok := strings.CutPrefix(part, tablePrefix); ok && table == "" {
			table = v
		}
	}
	return namespace, table
}

// ValidateRunDate checks the YYYYMMDD format.
func ValidateRunDate(runDate string) error {
	if _, err := time.Parse(csvingest.RunDateLayout, runDate); err != nil {
		return fmt.Errorf("run date %q is not YYYYMMDD: %w", runDate, csvingest.ErrInvalidConfig)
	}
	return nil
}

// Batch is one batch directory.
type Batch struct {
	Namespace string
	Table     string
	RunDate   string
	ID        string
	Dir       string
}

// Name returns the directory name, batch_id=<id>.
func (b Batch) Name() string { return batchPrefix + b.ID }

// PartsDir returns the directory holding the batch's files.
func (b Batch) PartsDir() string { return filepath.Join(b.Dir, partsDir) }

// ManifestPath returns the batch's manifest.json.
func (b Batch) ManifestPath() string { return filepath.Join(b.Dir, manifestFile) }

// Pair is a namespace/table combination present in a directory tree.
type Pair struct {
	Namespace string
	Table     string
}

func (p Pair) String() string { return p.Namespace + "/" + p.Table }

// Zone is a landing root together with what it needs to import and expire
// batches.
type Zone struct {
	root   string
	clock  clockwork.Clock
	digest checksum.Calculator
	logger csvingest.Logger
}

// NewZone creates a Zone rooted at root.
// Panics if any dependency is nil.
func NewZone(root string, clock clockwork.Clock, digest checksum.Calculator, logger csvingest.Logger) *Zone {
	if clock == nil {
		panic("clock cannot be nil")
	}
	if digest == nil {
		panic("digest cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Zone{root: root, clock: clock, digest: digest, logger: logger}
}

// Root returns the landing root.
func (z *Zone) Root() string { return z.root }

// subdirs returns the names of directories in dir starting with prefix,
// sorted. Staging (.tmp) and replaced (.bak) directories are left out. A
// missing dir yields nil.
func subdirs(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".bak") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Discover lists the namespace/table pairs under dir in name order.
func Discover(dir string) ([]Pair, error) {
	namespaces, err := subdirs(dir, namespacePrefix)
	if err != nil {
		return nil, err
	}
	var pairs []Pair
	for _, ns := range namespaces {
		tables, err := subdirs(filepath.Join(dir, ns), tablePrefix)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			pairs = append(pairs, Pair{
				Namespace: strings.TrimPrefix(ns, namespacePrefix),
				Table:     strings.TrimPrefix(t, tablePrefix),
			})
		}
	}
	return pairs, nil
}

// Discover lists the namespace/table pairs present in the zone.
func (z *Zone) Discover() ([]Pair, error) {
	return Discover(z.root)
}

// RunDates returns the run dates of namespace/table in ascending order.
func (z *Zone) RunDates(namespace, table string) ([]string, error) {
	dirs, err := subdirs(TableDir(z.root, namespace, table), runDatePrefix)
	if err != nil {
		return nil, err
	}
	dates := make([]string, len(dirs))
	for i, d := range dirs {
		dates[i] = strings.TrimPrefix(d, runDatePrefix)
	}
	return dates, nil
}

// LatestRunDate returns the last run date of namespace/table.
func (z *Zone) LatestRunDate(namespace, table string) (string, error) {
	dates, err := z.RunDates(namespace, table)
	if err != nil {
		return "", err
	}
	if len(dates) == 0 {
		return "", fmt.Errorf("no run_date under %s: %w", TableDir(z.root, namespace, table), csvingest.ErrBatchNotFound)
	}
	return dates[len(dates)-1], nil
}

func (z *Zone) batchesOf(namespace, table, runDate string) ([]Batch, error) {
	dir := filepath.Join(TableDir(z.root, namespace, table), runDatePrefix+runDate)
	names, err := subdirs(dir, batchPrefix)
	if err != nil {
		return nil, err
	}
	batches := make([]Batch, len(names))
	for i, n := range names {
		batches[i] = Batch{
			Namespace: namespace,
			Table:     table,
			RunDate:   runDate,
			ID:        strings.TrimPrefix(n, batchPrefix),
			Dir:       filepath.Join(dir, n),
		}
	}
	return batches, nil
}

// ResolveBatch finds one batch. batchID may be empty or LatestBatch for the
// newest batch of runDate.
func (z *Zone) ResolveBatch(namespace, table, runDate, batchID string) (Batch, error) {
	if batchID == "" || batchID == LatestBatch {
		batches, err := z.batchesOf(namespace, table, runDate)
		if err != nil {
			return Batch{}, err
		}
		if len(batches) == 0 {
			return Batch{}, fmt.Errorf("no batch under %s: %w",
				filepath.Join(TableDir(z.root, namespace, table), runDatePrefix+runDate), csvingest.ErrBatchNotFound)
		}
		return batches[len(batches)-1], nil
	}

	dir := BatchDir(z.root, namespace, table, runDate, batchID)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Batch{}, fmt.Errorf("%s: %w", dir, csvingest.ErrBatchNotFound)
	}
	return Batch{Namespace: namespace, Table: table, RunDate: runDate, ID: batchID, Dir: dir}, nil
}

// Batches returns every batch of namespace/table in creation order: by run
// date, then by batch id. since, when set, drops run dates before it.
func (z *Zone) Batches(namespace, table, since string) ([]Batch, error) {
	dates, err := z.RunDates(namespace, table)
	if err != nil {
		return nil, err
	}
	var all []Batch
	for _, d := range dates {
		if since != "" && d < since {
			continue
		}
		batches, err := z.batchesOf(namespace, table, d)
		if err != nil {
			return nil, err
		}
		all = append(all, batches...)
	}
	return all, nil
}
