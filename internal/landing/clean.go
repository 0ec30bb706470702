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

	"github.com/vvka-141/csvingest/internal/files"
	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// CleanOptions control landing retention.
type CleanOptions struct {
	RetentionDays     int
	CompressAfterDays int
	KeepPerTable      int
	DryRun            bool
}

// CleanReport counts what Clean did, or would do on a dry run.
type CleanReport struct {
	Compressed []string
	Deleted    []string
	Protected  []string
	Skipped    []string
	Failed     int
}

// Clean applies retention to every batch in the zone. Batches are grouped by
// namespace/table and the newest KeepPerTable of each group are protected
// from deletion. Batches whose run date is before the compression cutoff
// have their parts gzipped; unprotected batches before the retention cutoff
// are removed. Batches without a readable run date are skipped.
func (z *Zone) Clean(opts CleanOptions) (CleanReport, error) {
	var report CleanReport

	groups, err := z.groupBatches()
	if err != nil {
		return report, err
	}

	now := z.clock.Now()
	deleteBefore := now.AddDate(0, 0, -opts.RetentionDays)
	compressBefore := now.AddDate(0, 0, -opts.CompressAfterDays)

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		batches := groups[key]
		sort.Strings(batches)
		protected := map[string]bool{}
		if opts.KeepPerTable > 0 {
			for _, b := range batches[max(0, len(batches)-opts.KeepPerTable):] {
				protected[b] = true
			}
		}

		for _, b := range batches {
			runDate, ok := runDateOf(b, now.Location())
			if !ok {
				z.logger.Warn("skipping batch without run_date", "path", b)
				report.Skipped = append(report.Skipped, b)
				continue
			}

			if runDate.Before(compressBefore) {
				z.compressParts(filepath.Join(b, partsDir), opts.DryRun, &report)
			}

			if protected[b] {
				z.logger.Debug("protecting recent batch", "path", b)
				report.Protected = append(report.Protected, b)
				continue
			}

			if runDate.Before(deleteBefore) {
				if !opts.DryRun {
					if err := os.RemoveAll(b); err != nil {
						z.logger.Warn("cannot delete batch", "path", b, "error", err)
						report.Failed++
						continue
					}
				}
				z.logger.Info("deleted batch", "path", b, "dry_run", opts.DryRun)
				report.Deleted = append(report.Deleted, b)
			}
		}
	}

	z.logger.Info("landing clean finished", "compressed", len(report.Compressed), "deleted", len(report.Deleted),
		"protected", len(report.Protected), "dry_run", opts.DryRun)
	if report.Failed > 0 {
		return report, fmt.Errorf("landing clean: %d operation(s) failed", report.Failed)
	}
	return report, nil
}

// groupBatches finds every batch_id=* directory below the root, keyed by
// namespace/table.
func (z *Zone) groupBatches() (map[string][]string, error) {
	groups := map[string][]string{}
	err := filepath.WalkDir(z.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == z.root {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() || !strings.HasPrefix(d.Name(), batchPrefix) {
			return nil
		}
		ns, table := InferPartition(path)
		if ns == "" {
			ns = "<unknown>"
		}
		if table == "" {
			table = "<unknown>"
		}
		key := ns + "/" + table
		groups[key] = append(groups[key], path)
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("scan landing %s: %w", z.root, err)
	}
	return groups, nil
}

// runDateOf parses the innermost run_date= segment of path.
func runDateOf(path string, loc *time.Location) (time.Time, bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(parts[i], runDatePrefix); ok {
			t, err := time.ParseInLocation(csvingest.RunDateLayout, v, loc)
			return t, err == nil
		}
	}
	return time.Time{}, false
}

func (z *Zone) compressParts(dir string, dryRun bool, report *CleanReport) {
	csvs, err := source.List(dir, "*.csv")
	if err != nil {
		z.logger.Warn("cannot list parts", "path", dir, "error", err)
		report.Failed++
		return
	}
	for _, c := range csvs {
		if _, err := os.Stat(c + ".gz"); err == nil {
			continue
		}
		if dryRun {
			z.logger.Info("would compress", "path", c, "dry_run", true)
			report.Compressed = append(report.Compressed, c)
			continue
		}
		gz, err := files.GzipFile(c)
		if err != nil {
			z.logger.Warn("cannot compress part", "path", c, "error", err)
			report.Failed++
			continue
		}
		z.logger.Info("compressed part", "path", c, "dest", gz)
		report.Compressed = append(report.Compressed, c)
	}
}
