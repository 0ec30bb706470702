package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "csvingest",
	Short: "Load CSV drops into PostgreSQL",
	Long: `csvingest loads CSV files into all-TEXT tables of a PostgreSQL schema.

Files of a table are read in path order, their headers unified, copied into a
temporary staging table and merged into the target in one transaction per
table. Later files win when keys repeat. Targets can be snapshotted to
Parquet, and the ingestion tree and landing zone are kept tidy with
retention, compression and manifests.

Settings come from the environment (and a .env file in the working
directory); tables come from the YAML file named by --config or
$TABLES_CONFIG.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or unknown table
  11 - Database connection failed
  13 - One or more tables failed to load
  14 - Landing validation found problems`,
	SilenceUsage: true,
}

type rootFlagValues struct {
	verbose    bool
	logFormat  string
	configPath string
}

var rootFlags rootFlagValues

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "auto",
		"Log format: auto|text|json (auto = text on a terminal, JSON otherwise)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "",
		"Tables configuration file (default: $TABLES_CONFIG or config/tables.yml)")
}
