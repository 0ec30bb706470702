package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/services"
	"github.com/vvka-141/csvingest/internal/tui"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Run manual drops end to end",
	Long: `Flow chains land-import, validate, promote, ingest and snapshot for manual
drops below $MANUAL_DROP_ROOT/namespace=<ns>/table=<t>/. The table name is
also the tables configuration entry that is ingested.`,
}

var flowOneCmd = &cobra.Command{
	Use:   "one",
	Short: "Run one namespace/table drop",
	Example: `  csvingest flow one --namespace sales --table orders
  csvingest flow one --namespace sales --table orders --src ./incoming --no-snapshot`,
	Args: cobra.NoArgs,
	RunE: runFlowOne,
}

var flowAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run every drop that holds matching files",
	Long: `Auto runs 'flow one' for every namespace=*/table=* directory under
$MANUAL_DROP_ROOT holding files that match --pattern. Drops for tables
missing from the configuration are skipped; a failing drop does not stop
the others.`,
	Args: cobra.NoArgs,
	RunE: runFlowAuto,
}

type flowFlagValues struct {
	namespace, table, src      string
	runDate, encoding, pattern string
	move, dryRun               bool
	autoAddColumns             bool
	chunkSize                  int
	noSnapshot                 bool
	timeout                    time.Duration
}

var flowFlags flowFlagValues

func init() {
	rootCmd.AddCommand(flowCmd)
	flowCmd.AddCommand(flowOneCmd, flowAutoCmd)

	for _, c := range []*cobra.Command{flowOneCmd, flowAutoCmd} {
		f := c.Flags()
		f.StringVar(&flowFlags.runDate, "run-date", "", "Run date YYYYMMDD (default: today)")
		f.StringVar(&flowFlags.encoding, "encoding", "", "Encoding used to count rows (default utf-8)")
		f.StringVar(&flowFlags.pattern, "pattern", "", "File pattern inside the drop (default *.csv)")
		f.BoolVar(&flowFlags.move, "move", true, "Move dropped files into the landing zone (--move=false copies)")
		f.BoolVar(&flowFlags.dryRun, "dry-run", false, "List what would be imported and stop")
		f.BoolVar(&flowFlags.autoAddColumns, "auto-add-columns", true, "Add CSV columns missing from the target")
		f.IntVar(&flowFlags.chunkSize, "chunksize", 0, "Rows per COPY round trip for tables without their own chunksize")
		f.BoolVar(&flowFlags.noSnapshot, "no-snapshot", false, "Skip the Parquet snapshot")
		f.DurationVar(&flowFlags.timeout, "timeout", defaultTimeout, "Abort the run after this long")
	}

	flowOneCmd.Flags().StringVar(&flowFlags.namespace, "namespace", "", "Namespace of the drop")
	flowOneCmd.Flags().StringVar(&flowFlags.table, "table", "", "Table of the drop and its configuration entry")
	flowOneCmd.Flags().StringVar(&flowFlags.src, "src", "", "Drop directory (default $MANUAL_DROP_ROOT/namespace=<ns>/table=<t>)")
	_ = flowOneCmd.MarkFlagRequired("namespace")
	_ = flowOneCmd.MarkFlagRequired("table")
}

func flowRequest() services.FlowRequest {
	return services.FlowRequest{
		Namespace:      flowFlags.namespace,
		Table:          flowFlags.table,
		Src:            flowFlags.src,
		RunDate:        flowFlags.runDate,
		Encoding:       flowFlags.encoding,
		Pattern:        flowFlags.pattern,
		Move:           flowFlags.move,
		DryRun:         flowFlags.dryRun,
		AutoAddColumns: flowFlags.autoAddColumns,
		ChunkSize:      flowFlags.chunkSize,
		Snapshot:       !flowFlags.noSnapshot,
	}
}

func runFlowOne(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	tables, err := a.tables()
	if err != nil {
		return err
	}
	if _, err := tables.Lookup([]string{flowFlags.table}); err != nil {
		return err
	}

	ctx, cancel := commandContext(flowFlags.timeout)
	defer cancel()

	svc, err := a.services(ctx, tables)
	if err != nil {
		return err
	}
	defer svc.close()

	result, err := svc.flow.RunOne(ctx, flowRequest())
	if err != nil {
		return err
	}
	if result.Table.Table != "" {
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderIngestSummary([]csvingest.TableResult{result.Table}))
	}
	a.logger.Info("flow finished", "namespace", flowFlags.namespace, "table", flowFlags.table,
		"files", len(result.Import.Sources), "merged", result.Table.RowsMerged, "dry_run", flowFlags.dryRun)
	return nil
}

func runFlowAuto(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	tables, err := a.tables()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(flowFlags.timeout)
	defer cancel()

	svc, err := a.services(ctx, tables)
	if err != nil {
		return err
	}
	defer svc.close()

	results, err := svc.flow.RunAuto(ctx, flowRequest())
	var tableResults []csvingest.TableResult
	for _, r := range results {
		if r.Table.Table != "" {
			tableResults = append(tableResults, r.Table)
		}
	}
	if len(tableResults) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderIngestSummary(tableResults))
	}
	a.logger.Info("flow auto finished", "drops", len(results))
	return err
}
