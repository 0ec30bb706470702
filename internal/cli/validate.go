package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check landing batches for completeness",
	Long: `Validate checks every batch_id=* directory below --landing (default
$LANDING_ROOT): manifest.json present with its required keys, a parts
directory with at least one .csv or .csv.gz file, and listed files matching
their recorded size and MD5.

Problems are printed one per line; the command then exits with code 14.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

type validateFlagValues struct {
	landing string
}

var validateFlags validateFlagValues

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.landing, "landing", "", "Directory to validate (default $LANDING_ROOT)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	report, err := a.zone().Validate(validateFlags.landing)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range report.Problems {
		fmt.Fprintf(out, "%s: %s\n", p.Batch, p.Reason)
	}
	return report.Err()
}
