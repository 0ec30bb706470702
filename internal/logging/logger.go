package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Output formats accepted by New.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to w.
// If verbose is true, Debug records are emitted; otherwise the level is Info.
// FormatAuto picks text when w is a terminal and JSON otherwise.
func New(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch resolveFormat(w, format) {
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want auto, text or json)", format)
	}
}

// NewConsoleLogger creates a logger on stderr and falls back to text output
// when the format is unknown.
func NewConsoleLogger(verbose bool, format string) *slog.Logger {
	logger, err := New(os.Stderr, verbose, format)
	if err != nil {
		logger, _ = New(os.Stderr, verbose, FormatText)
		logger.Warn("falling back to text logs", "error", err)
	}
	return logger
}

func resolveFormat(w io.Writer, format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != FormatAuto {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}
