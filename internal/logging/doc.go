// Package logging builds the structured loggers handed to every component.
//
// Loggers are *slog.Logger values and therefore satisfy csvingest.Logger:
//   - New: text or JSON lines on the given writer, Debug level when verbose
//   - NewNullLogger: discards everything (useful for testing)
//
// All loggers are safe for concurrent use by multiple goroutines.
package logging
