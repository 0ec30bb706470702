package landing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Problem is one defect found in a batch.
type Problem struct {
	Batch  string
	Reason string
}

// ValidationReport is the outcome of Validate.
type ValidationReport struct {
	Batches  int
	Problems []Problem
}

// Err returns ErrLandingInvalid when problems were found.
func (r ValidationReport) Err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d problem(s) in %d batch(es)", csvingest.ErrLandingInvalid, len(r.Problems), r.Batches)
}

// Validate checks every batch_id=* directory under root, or under the zone
// root when root is empty. A batch needs a manifest.json with the required
// keys, a parts directory with at least one .csv or .csv.gz file, and
// listed files whose MD5 matches the manifest. Files compressed after
// import are not re-hashed.
func (z *Zone) Validate(root string) (ValidationReport, error) {
	if root == "" {
		root = z.root
	}
	var report ValidationReport

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() || !strings.HasPrefix(d.Name(), batchPrefix) {
			return nil
		}
		report.Batches++
		problems := z.checkBatch(path)
		for _, p := range problems {
			z.logger.Warn("invalid batch", "path", path, "problem", p)
			report.Problems = append(report.Problems, Problem{Batch: path, Reason: p})
		}
		if len(problems) == 0 {
			z.logger.Debug("batch ok", "path", path)
		}
		return fs.SkipDir
	})
	if err != nil {
		return report, fmt.Errorf("validate %s: %w", root, err)
	}

	if len(report.Problems) > 0 {
		z.logger.Warn("landing validation failed", "path", root, "batches", report.Batches, "problems", len(report.Problems))
	} else {
		z.logger.Info("landing validation passed", "path", root, "batches", report.Batches)
	}
	return report, nil
}

func (z *Zone) checkBatch(dir string) []string {
	manifestPath := filepath.Join(dir, manifestFile)
	parts := filepath.Join(dir, partsDir)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return []string{"manifest missing: " + manifestPath}
	}
	if info, err := os.Stat(parts); err != nil || !info.IsDir() {
		return []string{"parts folder missing: " + parts}
	}

	missing, err := missingKeys(data)
	if err != nil {
		return []string{fmt.Sprintf("manifest broken: %v", err)}
	}

	var problems []string
	for _, k := range missing {
		problems = append(problems, "manifest key missing: "+k)
	}

	csvs, _ := filepath.Glob(filepath.Join(parts, "*.csv"))
	gzs, _ := filepath.Glob(filepath.Join(parts, "*.csv.gz"))
	if len(csvs)+len(gzs) == 0 {
		problems = append(problems, "no csv files: "+parts)
	}

	if len(missing) == 0 {
		problems = append(problems, z.verifyFiles(dir, manifestPath)...)
	}
	return problems
}

// verifyFiles compares listed files with the manifest's size and MD5.
func (z *Zone) verifyFiles(dir, manifestPath string) []string {
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return []string{fmt.Sprintf("manifest broken: %v", err)}
	}
	var problems []string
	for _, f := range m.Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Path))
		if _, err := os.Stat(path); err != nil {
			if _, gzErr := os.Stat(path + ".gz"); gzErr == nil {
				continue
			}
			problems = append(problems, "listed file missing: "+f.Path)
			continue
		}
		d, err := z.digest.DigestFile(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("cannot read %s: %v", f.Path, err))
			continue
		}
		if d.MD5 != f.MD5 || d.Size != f.Size {
			problems = append(problems, "checksum mismatch: "+f.Path)
		}
	}
	return problems
}
