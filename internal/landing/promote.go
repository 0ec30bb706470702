package landing

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vvka-141/csvingest/internal/files"
	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// PromoteRequest selects the batch to promote.
type PromoteRequest struct {
	Namespace string
	Table     string
	RunDate   string
	BatchID   string // empty or LatestBatch for the newest batch of RunDate
}

// PromoteResult lists the files written to the ingestion tree.
type PromoteResult struct {
	Batch Batch
	Dest  string
	Files []string
}

// IngestDir returns <csvRoot>/namespace=<ns>/table=<t>.
func IngestDir(csvRoot, namespace, table string) string {
	return TableDir(csvRoot, namespace, table)
}

// PromotedName is the ingestion file name of part in batch b:
// <table>_<run_date>_batch_id=<id>_<part>. It keeps files from different
// batches apart and sorts them in batch order.
func PromotedName(b Batch, part string) string {
	return fmt.Sprintf("%s_%s_%s_%s", b.Table, b.RunDate, b.Name(), part)
}

// Promote copies the parts/*.csv files of the requested batch into the
// ingestion tree under csvRoot.
func (z *Zone) Promote(req PromoteRequest, csvRoot string) (PromoteResult, error) {
	if err := ValidateRunDate(req.RunDate); err != nil {
		return PromoteResult{}, err
	}
	b, err := z.ResolveBatch(req.Namespace, req.Table, req.RunDate, req.BatchID)
	if err != nil {
		return PromoteResult{}, err
	}
	return z.CopyBatch(b, csvRoot)
}

// CopyBatch copies b's parts/*.csv files into the ingestion tree under csvRoot.
func (z *Zone) CopyBatch(b Batch, csvRoot string) (PromoteResult, error) {
	result := PromoteResult{Batch: b, Dest: IngestDir(csvRoot, b.Namespace, b.Table)}

	if info, err := os.Stat(b.PartsDir()); err != nil || !info.IsDir() {
		return result, fmt.Errorf("parts not found in %s: %w", b.Dir, csvingest.ErrBatchNotFound)
	}
	parts, err := source.List(b.PartsDir(), "*.csv")
	if err != nil {
		return result, err
	}
	if err := os.MkdirAll(result.Dest, 0o755); err != nil {
		return result, err
	}

	for _, p := range parts {
		dst := filepath.Join(result.Dest, PromotedName(b, filepath.Base(p)))
		if err := files.CopyFile(p, dst); err != nil {
			return result, fmt.Errorf("promote %s: %w", p, err)
		}
		result.Files = append(result.Files, dst)
		z.logger.Debug("promoted file", "src", p, "dst", dst)
	}
	z.logger.Info("promoted batch", "batch", b.Dir, "dest", result.Dest, "files", len(result.Files))
	return result, nil
}
