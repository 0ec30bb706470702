package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/landing"
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Copy a landing batch into the ingestion tree",
	Long: `Promote copies parts/*.csv of one landing batch to
$CSV_ROOT/namespace=<ns>/table=<t>/<table>_<run_date>_batch_id=<id>_<file>,
where the next ingest picks them up.

Examples:
  csvingest promote --namespace sales --table orders --run-date 20240426
  csvingest promote --namespace sales --table orders --run-date 20240426 --batch-id 20240426T101500Z_1a2b3c4d`,
	Args: cobra.NoArgs,
	RunE: runPromote,
}

type promoteFlagValues struct {
	namespace, table, runDate, batchID string
}

var promoteFlags promoteFlagValues

func init() {
	rootCmd.AddCommand(promoteCmd)

	f := promoteCmd.Flags()
	f.StringVar(&promoteFlags.namespace, "namespace", "", "Namespace of the batch")
	f.StringVar(&promoteFlags.table, "table", "", "Table of the batch")
	f.StringVar(&promoteFlags.runDate, "run-date", "", "Run date YYYYMMDD")
	f.StringVar(&promoteFlags.batchID, "batch-id", landing.LatestBatch, "Batch id, or 'latest' for the newest batch of the run date")
	_ = promoteCmd.MarkFlagRequired("namespace")
	_ = promoteCmd.MarkFlagRequired("table")
	_ = promoteCmd.MarkFlagRequired("run-date")
}

func runPromote(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	result, err := a.zone().Promote(landing.PromoteRequest{
		Namespace: promoteFlags.namespace,
		Table:     promoteFlags.table,
		RunDate:   promoteFlags.runDate,
		BatchID:   promoteFlags.batchID,
	}, a.settings.Paths.CSVRoot)
	if err != nil {
		return err
	}
	for _, f := range result.Files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}
