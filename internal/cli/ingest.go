package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/tui"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load configured tables from the ingestion tree",
	Long: `Ingest loads every configured table, or only those named with --table,
from $CSV_ROOT/<folder>/<filename_glob> into $TARGET_SCHEMA.

Each table is one transaction: the target is created or extended, all of its
files are copied into a temporary staging table in path order, rows with a
repeated key keep the last occurrence, and the result is merged into the
target. A failing table is rolled back and the remaining tables still run.

Examples:
  # Load every configured table
  csvingest ingest

  # Load two tables and add new CSV columns to their targets
  csvingest ingest --table orders --table customers --auto-add-columns`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

type ingestFlagValues struct {
	tables         []string
	autoAddColumns bool
	chunkSize      int
	timeout        time.Duration
}

var ingestFlags ingestFlagValues

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringArrayVar(&ingestFlags.tables, "table", nil,
		"Table to load (repeatable; default: all configured tables)")
	ingestCmd.Flags().BoolVar(&ingestFlags.autoAddColumns, "auto-add-columns", false,
		"Add CSV columns missing from the target as nullable TEXT")
	ingestCmd.Flags().IntVar(&ingestFlags.chunkSize, "chunksize", 0,
		"Rows per COPY round trip for tables without their own chunksize (default 200000)")
	ingestCmd.Flags().DurationVar(&ingestFlags.timeout, "timeout", defaultTimeout,
		"Abort the run after this long")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	opts := csvingest.IngestOptions{
		AutoAddColumns: ingestFlags.autoAddColumns,
		ChunkSize:      ingestFlags.chunkSize,
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	tables, err := a.tables()
	if err != nil {
		return err
	}
	// Unknown names fail here, before any connection is made.
	if _, err := tables.Lookup(ingestFlags.tables); err != nil {
		return err
	}

	ctx, cancel := commandContext(ingestFlags.timeout)
	defer cancel()

	svc, err := a.services(ctx, tables)
	if err != nil {
		return err
	}
	defer svc.close()

	results, err := svc.ingest.IngestTables(ctx, ingestFlags.tables, opts)
	var loaded, skipped int
	for _, r := range results {
		if r.Skipped {
			skipped++
		} else {
			loaded++
		}
	}
	if len(results) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderIngestSummary(results))
	}
	a.logger.Info("ingest finished", "tables", len(results), "loaded", loaded, "skipped", skipped, "failed", err != nil)
	return err
}
