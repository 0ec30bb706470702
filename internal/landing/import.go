package landing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/csvingest/internal/files"
	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// ImportRequest describes one manual drop import.
type ImportRequest struct {
	// Src is the directory holding the dropped files.
	Src string

	// Namespace and Table default to the namespace= and table= segments of Src.
	Namespace string
	Table     string

	// RunDate is YYYYMMDD. Empty means today.
	RunDate string

	// Encoding is used to count data rows. Empty means UTF-8.
	Encoding string

	// Pattern selects files in Src. Empty means *.csv.
	Pattern string

	// Move removes the files from Src instead of copying them.
	Move bool

	// DryRun lists what would be imported and stops.
	DryRun bool

	// Latest points the run date's "latest" link at the new batch.
	Latest bool
}

// ImportResult describes the batch an import created.
type ImportResult struct {
	Batch    Batch
	Sources  []string
	Manifest *Manifest
	DryRun   bool
}

// Empty reports whether no file matched.
func (r ImportResult) Empty() bool { return len(r.Sources) == 0 }

// resolve fills defaults and checks the request.
func (req *ImportRequest) resolve(today time.Time) error {
	ns, table := InferPartition(req.Src)
	if req.Namespace == "" {
		req.Namespace = ns
	}
	if req.Table == "" {
		req.Table = table
	}
	if req.Namespace == "" || req.Table == "" {
		return fmt.Errorf("namespace and table are required (or encode them in the source path as namespace=<ns>/table=<table>): %w",
			csvingest.ErrInvalidConfig)
	}
	if req.RunDate == "" {
		req.RunDate = today.Format(csvingest.RunDateLayout)
	}
	if err := ValidateRunDate(req.RunDate); err != nil {
		return err
	}
	if req.Encoding == "" {
		req.Encoding = csvingest.DefaultEncoding
	}
	if err := source.ValidateEncoding(req.Encoding); err != nil {
		return err
	}
	if req.Pattern == "" {
		req.Pattern = csvingest.DefaultFilenameGlob
	}
	if _, err := filepath.Match(req.Pattern, ""); err != nil {
		return fmt.Errorf("pattern %q: %w", req.Pattern, csvingest.ErrInvalidConfig)
	}
	return nil
}

// Import stages the files of req.Src as a new batch. The batch is assembled
// in a .tmp directory and renamed into place once its manifest is written, so
// a batch directory is either complete or absent. When no file matches, the
// result is empty and no batch is created.
func (z *Zone) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	now := z.clock.Now()
	if err := req.resolve(now); err != nil {
		return ImportResult{}, err
	}

	if info, err := os.Stat(req.Src); err != nil {
		return ImportResult{}, fmt.Errorf("source directory: %w", err)
	} else if !info.IsDir() {
		return ImportResult{}, fmt.Errorf("source %s is not a directory", req.Src)
	}
	sources, err := source.List(req.Src, req.Pattern)
	if err != nil {
		return ImportResult{}, err
	}

	batchID := NewBatchID(now)
	batch := Batch{
		Namespace: req.Namespace,
		Table:     req.Table,
		RunDate:   req.RunDate,
		ID:        batchID,
		Dir:       BatchDir(z.root, req.Namespace, req.Table, req.RunDate, batchID),
	}
	result := ImportResult{Batch: batch, Sources: sources, DryRun: req.DryRun}

	if len(sources) == 0 {
		z.logger.Info("no files matched", "src", req.Src, "pattern", req.Pattern)
		return result, nil
	}

	z.logger.Info("importing batch", "namespace", req.Namespace, "table", req.Table,
		"run_date", req.RunDate, "batch_id", batchID, "src", req.Src, "files", len(sources), "move", req.Move)
	if req.DryRun {
		for i, s := range sources {
			z.logger.Info("would import", "n", i+1, "file", filepath.Base(s), "dry_run", true)
		}
		return result, nil
	}

	tmpDir := batch.Dir + ".tmp"
	if err := os.MkdirAll(filepath.Join(tmpDir, partsDir), 0o755); err != nil {
		return result, err
	}

	manifest := &Manifest{
		Namespace:   req.Namespace,
		Table:       req.Table,
		RunDate:     req.RunDate,
		BatchID:     batchID,
		Source:      SourceManual,
		ExtractedAt: now.UTC().Format(time.RFC3339),
		Encoding:    req.Encoding,
		Files:       make([]FileEntry, 0, len(sources)),
		Notes:       "manual drop import",
	}
	var staged []stagedFile
	fail := func(err error) (ImportResult, error) {
		z.unstage(tmpDir, staged, req.Move)
		return result, err
	}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		dst := filepath.Join(tmpDir, partsDir, filepath.Base(src))
		if err := transferFile(src, dst, req.Move); err != nil {
			return fail(fmt.Errorf("stage %s: %w", src, err))
		}
		staged = append(staged, stagedFile{src: src, dst: dst})

		entry, err := z.describeFile(dst, req)
		if err != nil {
			return fail(err)
		}
		verb := "copied"
		if req.Move {
			verb = "moved"
		}
		z.logger.Info(verb+" file", "src", src, "dst", dst, "rows", entry.Rows, "size", entry.Size)
		manifest.Files = append(manifest.Files, entry)
	}

	data, err := manifest.Encode()
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, manifestFile), data, 0o644); err != nil {
		return fail(fmt.Errorf("write manifest: %w", err))
	}

	if err := commitDir(tmpDir, batch.Dir); err != nil {
		return fail(err)
	}
	z.logger.Info("committed batch", "path", batch.Dir, "files", len(manifest.Files))
	result.Manifest = manifest

	if req.Latest {
		if err := pointLatest(batch); err != nil {
			return result, err
		}
		z.logger.Info("latest link updated", "path", filepath.Join(filepath.Dir(batch.Dir), latestLink), "batch", batch.Name())
	}
	return result, nil
}

type stagedFile struct {
	src, dst string
}

func transferFile(src, dst string, move bool) error {
	if move {
		return files.MoveFile(src, dst)
	}
	return files.CopyFile(src, dst)
}

// describeFile builds the manifest entry of a staged part.
func (z *Zone) describeFile(dst string, req ImportRequest) (FileEntry, error) {
	d, err := z.digest.DigestFile(dst)
	if err != nil {
		return FileEntry{}, fmt.Errorf("checksum %s: %w", dst, err)
	}
	rows, err := source.CountDataLines(dst, source.Options{Encoding: req.Encoding})
	if errors.Is(err, csvingest.ErrDecode) {
		z.logger.Warn("cannot decode file, counting raw lines", "file", dst, "encoding", req.Encoding)
		rows = max(0, d.Lines-1)
	} else if err != nil {
		return FileEntry{}, fmt.Errorf("count rows of %s: %w", dst, err)
	}
	return FileEntry{
		Path: partsDir + "/" + filepath.Base(dst),
		Size: d.Size,
		MD5:  d.MD5,
		Rows: rows,
	}, nil
}

// unstage undoes a failed import. Moved files go back to the drop folder and
// the .tmp directory is removed. When a file cannot be put back the .tmp
// directory is left in place and its path logged.
func (z *Zone) unstage(tmpDir string, staged []stagedFile, moved bool) {
	stranded := 0
	if moved {
		for _, f := range staged {
			if err := files.MoveFile(f.dst, f.src); err != nil {
				z.logger.Error("cannot return file to drop folder", "file", f.dst, "src", f.src, "error", err)
				stranded++
			}
		}
	}
	if stranded > 0 {
		z.logger.Error("partial batch kept for recovery", "path", tmpDir, "files", stranded)
		return
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		z.logger.Warn("cannot remove partial batch", "path", tmpDir, "error", err)
		return
	}
	if moved && len(staged) > 0 {
		z.logger.Warn("import failed, files returned to drop folder", "files", len(staged))
	}
}

// commitDir renames tmp to final. An existing final directory is kept as
// final.bak, replacing any older backup.
func commitDir(tmp, final string) error {
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(final); err == nil {
		bak := final + ".bak"
		if err := os.RemoveAll(bak); err != nil {
			return err
		}
		if err := os.Rename(final, bak); err != nil {
			return fmt.Errorf("back up %s: %w", final, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit batch %s: %w", final, err)
	}
	return nil
}

// pointLatest replaces the run date's latest link with a relative link to b.
func pointLatest(b Batch) error {
	link := filepath.Join(filepath.Dir(b.Dir), latestLink)
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return err
		}
	}
	if err := os.Symlink(b.Name(), link); err != nil {
		return fmt.Errorf("link latest batch: %w", err)
	}
	return nil
}
