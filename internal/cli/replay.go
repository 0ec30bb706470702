package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/services"
	"github.com/vvka-141/csvingest/internal/tui"
	"github.com/vvka-141/csvingest/internal/ui"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

var errReplayCancelled = errors.New("replay cancelled")

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild tables from every landed batch",
	Long: `Replay empties $CSV_ROOT/namespace=<ns>/table=<t>, copies every landing batch
of that namespace/table into it in creation order (from --since on) and
ingests the table once with column auto-add.

Without --namespace and --table every landed namespace/table is replayed;
tables missing from the configuration are skipped.

Replay asks for the target to be typed back first. --force replaces the
prompt with a countdown and is required when not attached to a terminal
(or when CI or CSVINGEST_NON_INTERACTIVE=1 is set).`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

type replayFlagValues struct {
	namespace, table, since string
	snapshot, force         bool
	chunkSize               int
	timeout                 time.Duration
}

var replayFlags replayFlagValues

func init() {
	rootCmd.AddCommand(replayCmd)

	f := replayCmd.Flags()
	f.StringVar(&replayFlags.namespace, "namespace", "", "Only this namespace")
	f.StringVar(&replayFlags.table, "table", "", "Only this table")
	f.StringVar(&replayFlags.since, "since", "", "First run date to replay, YYYYMMDD")
	f.BoolVar(&replayFlags.snapshot, "snapshot", false, "Snapshot each replayed table")
	f.BoolVar(&replayFlags.force, "force", false, "Skip the confirmation prompt after a countdown")
	f.IntVar(&replayFlags.chunkSize, "chunksize", 0, "Rows per COPY round trip for tables without their own chunksize")
	f.DurationVar(&replayFlags.timeout, "timeout", defaultTimeout, "Abort the run after this long")
}

func runReplay(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	tables, err := a.tables()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(replayFlags.timeout)
	defer cancel()

	if err := confirmReplay(ctx, tui.IsInteractive()); err != nil {
		return err
	}

	svc, err := a.services(ctx, tables)
	if err != nil {
		return err
	}
	defer svc.close()

	results, err := svc.flow.Replay(ctx, services.ReplayRequest{
		Namespace: replayFlags.namespace,
		Table:     replayFlags.table,
		Since:     replayFlags.since,
		Snapshot:  replayFlags.snapshot,
		ChunkSize: replayFlags.chunkSize,
	})
	tableResults := make([]csvingest.TableResult, 0, len(results))
	for _, r := range results {
		a.logger.Info("replayed", "namespace", r.Pair.Namespace, "table", r.Pair.Table,
			"batches", r.Batches, "merged", r.Table.RowsMerged)
		tableResults = append(tableResults, r.Table)
	}
	if len(tableResults) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderIngestSummary(tableResults))
	}
	return err
}

// replayTarget names what a replay with the current flags rebuilds.
func replayTarget() string {
	switch {
	case replayFlags.namespace != "" && replayFlags.table != "":
		return replayFlags.namespace + "/" + replayFlags.table
	case replayFlags.namespace != "":
		return replayFlags.namespace + "/*"
	case replayFlags.table != "":
		return "*/" + replayFlags.table
	}
	return "*/*"
}

func replayApprover(interactive bool) (csvingest.Approver, error) {
	if replayFlags.force {
		return ui.NewForcedApprover(rootFlags.verbose), nil
	}
	if !interactive {
		return nil, fmt.Errorf("replay needs --force when stdin is not a terminal: %w", csvingest.ErrInvalidConfig)
	}
	return ui.NewInteractiveApprover(rootFlags.verbose), nil
}

func confirmReplay(ctx context.Context, interactive bool) error {
	approver, err := replayApprover(interactive)
	if err != nil {
		return err
	}
	target := replayTarget()
	ok, err := approver.RequestApproval(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", errReplayCancelled, target)
	}
	return nil
}
