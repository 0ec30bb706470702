package cli

import (
	"github.com/spf13/cobra"
	"github.com/vvka-141/csvingest/internal/landing"
)

var landingCleanCmd = &cobra.Command{
	Use:   "landing-clean",
	Short: "Compress and expire old landing batches",
	Long: `Landing-clean applies retention to the landing zone. Per namespace/table the
newest $LANDING_KEEP_PER_NAMESPACE batches are never removed. Batches whose
run date is older than $LANDING_COMPRESS_AFTER_DAYS have their parts gzipped;
unprotected batches older than $LANDING_RETENTION_DAYS are deleted.`,
	Args: cobra.NoArgs,
	RunE: runLandingClean,
}

type landingCleanFlagValues struct {
	dryRun bool
}

var landingCleanFlags landingCleanFlagValues

func init() {
	rootCmd.AddCommand(landingCleanCmd)

	landingCleanCmd.Flags().BoolVar(&landingCleanFlags.dryRun, "dry-run", false, "Report what would be compressed or deleted")
}

func runLandingClean(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.finish()

	r := a.settings.Retention
	report, err := a.zone().Clean(landing.CleanOptions{
		RetentionDays:     r.LandingDays,
		CompressAfterDays: r.LandingCompressAfterDays,
		KeepPerTable:      r.LandingKeepPerTable,
		DryRun:            landingCleanFlags.dryRun,
	})
	if !landingCleanFlags.dryRun {
		a.metrics.ObserveRetention("landing_compressed", len(report.Compressed))
		a.metrics.ObserveRetention("landing_deleted", len(report.Deleted))
	}
	a.metrics.ObserveRetention("landing_failed", report.Failed)

	a.logger.Info("landing clean finished", "compressed", len(report.Compressed), "deleted", len(report.Deleted),
		"protected", len(report.Protected), "skipped", len(report.Skipped), "failed", report.Failed,
		"dry_run", landingCleanFlags.dryRun)
	return err
}
