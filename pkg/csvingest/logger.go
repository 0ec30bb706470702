package csvingest

// Logger is the structured logging interface used by every component.
// Arguments after msg are alternating key/value pairs, as with log/slog;
// *slog.Logger satisfies it directly.
// Implementations must be safe for concurrent use by multiple goroutines.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
