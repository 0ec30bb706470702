package csvingest

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // All requested work completed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or unknown table
	ExitConnectionError = 11 // Failed to connect to database
	ExitIngestFailed    = 13 // One or more tables failed to load
	ExitLandingInvalid  = 14 // Landing validation reported problems
)

const (
	// DefaultForceApprovalCountdown is how long --force waits before a destructive step.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultChunkSize is the number of CSV records copied into staging per round trip.
	DefaultChunkSize = 200_000

	// DefaultFilenameGlob selects source files inside a table folder.
	DefaultFilenameGlob = "*.csv"

	// DefaultEncoding is the source encoding when a table does not declare one.
	DefaultEncoding = "utf-8"

	// DefaultTargetSchema receives all ingested tables.
	DefaultTargetSchema = "raw"

	// DefaultRetentionDays is the age after which ingestion CSVs are cleaned.
	DefaultRetentionDays = 60

	// DefaultLandingRetentionDays is the age after which landing batches are removed.
	DefaultLandingRetentionDays = 90

	// DefaultLandingCompressAfterDays is the age after which landing parts are gzipped.
	DefaultLandingCompressAfterDays = 60

	// DefaultLandingKeepPerTable is how many recent batches per namespace/table are protected.
	DefaultLandingKeepPerTable = 3

	// RunDateLayout is the YYYYMMDD layout used by run_date partitions and snapshot folders.
	RunDateLayout = "20060102"
)
