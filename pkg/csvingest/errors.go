package csvingest

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// Callers distinguish them with errors.Is().
//
// Example usage:
//
//	err := ingester.IngestTables(ctx, names, opts)
//	if errors.Is(err, csvingest.ErrTableNotConfigured) {
//	    // unknown table name on the command line
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTableNotConfigured indicates a table name has no entry in the tables file.
	ErrTableNotConfigured = errors.New("table not found in configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrDecode indicates a source file could not be decoded with the configured encoding.
	ErrDecode = errors.New("decode error")

	// ErrIngestFailed indicates at least one table failed to load.
	ErrIngestFailed = errors.New("ingestion failed")

	// ErrBatchNotFound indicates a landing batch could not be resolved.
	ErrBatchNotFound = errors.New("landing batch not found")

	// ErrLandingInvalid indicates landing validation reported problems.
	ErrLandingInvalid = errors.New("landing validation failed")
)

// usagePatterns are substrings cobra puts into flag and argument errors.
var usagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"required flag",
	"invalid argument",
	"accepts ",
	"flag needs an argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrTableNotConfigured),
		errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrLandingInvalid):
		return ExitLandingInvalid
	case errors.Is(err, ErrIngestFailed), errors.Is(err, ErrDecode):
		return ExitIngestFailed
	}

	errStr := err.Error()
	for _, p := range usagePatterns {
		if strings.Contains(errStr, p) {
			return ExitUsageError
		}
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
