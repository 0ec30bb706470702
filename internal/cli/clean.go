package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/retention"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete or archive old ingestion CSVs",
	Long: `Clean walks $CSV_ROOT and handles every *.csv and *.csv.gz file whose
modification time is older than --days (default $RETENTION_DAYS).

Expired files are deleted, or moved below $ARCHIVE_ROOT with --archive,
keeping their path relative to $CSV_ROOT. --dry-run only lists them.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

type cleanFlagValues struct {
	archive bool
	dryRun  bool
	days    int
}

var cleanFlags cleanFlagValues

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().BoolVar(&cleanFlags.archive, "archive", false, "Move expired files to $ARCHIVE_ROOT instead of deleting them")
	cleanCmd.Flags().BoolVar(&cleanFlags.dryRun, "dry-run", false, "List expired files without touching them")
	cleanCmd.Flags().IntVar(&cleanFlags.days, "days", 0, "Retention in days (default $RETENTION_DAYS)")
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	days := a.settings.Retention.Days
	if cmd.Flags().Changed("days") {
		days = cleanFlags.days
	}
	if days < 0 {
		return fmt.Errorf("--days cannot be negative: %w", csvingest.ErrInvalidConfig)
	}

	opts := retention.Options{
		MaxAge: time.Duration(days) * 24 * time.Hour,
		DryRun: cleanFlags.dryRun,
	}
	if cleanFlags.archive {
		opts.ArchiveRoot = a.settings.Paths.ArchiveRoot
	}

	root := a.settings.Paths.CSVRoot
	report, err := retention.NewSweeper(a.clock, a.logger).Sweep(root, opts)
	for _, action := range []retention.Action{retention.ActionReported, retention.ActionArchived, retention.ActionDeleted, retention.ActionFailed} {
		a.metrics.ObserveRetention(string(action), report.Count(action))
	}
	if err != nil {
		return err
	}

	a.logger.Info("clean finished", "root", root, "days", days, "scanned", report.Scanned,
		"reported", report.Count(retention.ActionReported),
		"archived", report.Count(retention.ActionArchived),
		"deleted", report.Count(retention.ActionDeleted),
		"failed", report.Count(retention.ActionFailed))
	return nil
}
