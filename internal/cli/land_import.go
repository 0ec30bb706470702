package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/landing"
)

var landImportCmd = &cobra.Command{
	Use:   "land-import",
	Short: "Import a manual drop into the landing zone",
	Long: `Land-import copies (or with --move, moves) the files of --src matching
--pattern into a new landing batch:

  $LANDING_ROOT/namespace=<ns>/table=<t>/run_date=<YYYYMMDD>/batch_id=<id>/parts/

together with a manifest.json listing size, MD5 and row count of each file.
Namespace and table default to namespace= and table= segments of --src.

Examples:
  csvingest land-import --src ./manual_drop/namespace=sales/table=orders --latest
  csvingest land-import --src ./drop --namespace sales --table orders --run-date 20240426 --move`,
	Args: cobra.NoArgs,
	RunE: runLandImport,
}

type landImportFlagValues struct {
	src, namespace, table, runDate string
	encoding, pattern              string
	move, dryRun, latest           bool
}

var landImportFlags landImportFlagValues

func init() {
	rootCmd.AddCommand(landImportCmd)

	f := landImportCmd.Flags()
	f.StringVar(&landImportFlags.src, "src", "", "Directory holding the dropped files")
	f.StringVar(&landImportFlags.namespace, "namespace", "", "Namespace (default: namespace= segment of --src)")
	f.StringVar(&landImportFlags.table, "table", "", "Table (default: table= segment of --src)")
	f.StringVar(&landImportFlags.runDate, "run-date", "", "Run date YYYYMMDD (default: today)")
	f.StringVar(&landImportFlags.encoding, "encoding", "", "Encoding used to count rows (default utf-8)")
	f.StringVar(&landImportFlags.pattern, "pattern", "", "File pattern inside --src (default *.csv)")
	f.BoolVar(&landImportFlags.move, "move", false, "Move files instead of copying them")
	f.BoolVar(&landImportFlags.dryRun, "dry-run", false, "List the files that would be imported")
	f.BoolVar(&landImportFlags.latest, "latest", false, "Point the run date's latest link at the new batch")
	_ = landImportCmd.MarkFlagRequired("src")
}

func runLandImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(defaultTimeout)
	defer cancel()

	result, err := a.zone().Import(ctx, landing.ImportRequest{
		Src:       landImportFlags.src,
		Namespace: landImportFlags.namespace,
		Table:     landImportFlags.table,
		RunDate:   landImportFlags.runDate,
		Encoding:  landImportFlags.encoding,
		Pattern:   landImportFlags.pattern,
		Move:      landImportFlags.move,
		DryRun:    landImportFlags.dryRun,
		Latest:    landImportFlags.latest,
	})
	if err != nil {
		return err
	}
	if !result.Empty() && !result.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), result.Batch.Dir)
	}
	return nil
}
