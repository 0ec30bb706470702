package logging

import (
	"io"
	"log/slog"
)

// NewNullLogger returns a logger that discards all records.
func NewNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
