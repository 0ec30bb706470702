package tui

import (
	"os"

	"golang.org/x/term"
)

// Mode represents the interaction mode for csvingest.
type Mode int

const (
	// ModeNonInteractive is used for cron jobs, CI/CD pipelines and piped input.
	ModeNonInteractive Mode = iota
	// ModeInteractive is used when a human is at the terminal.
	ModeInteractive
)

// DetectMode determines whether csvingest may prompt.
//
// Returns ModeNonInteractive if:
//   - CSVINGEST_NON_INTERACTIVE=1 is set
//   - CI is set
//   - stdin or stdout is not a terminal
func DetectMode() Mode {
	if os.Getenv("CSVINGEST_NON_INTERACTIVE") == "1" {
		return ModeNonInteractive
	}
	if os.Getenv("CI") != "" {
		return ModeNonInteractive
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ModeNonInteractive
	}
	return ModeInteractive
}

// IsInteractive is a convenience function that returns true if running in interactive mode.
func IsInteractive() bool {
	return DetectMode() == ModeInteractive
}
