package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	// logOutput is the destination all handlers write to.
	// Defaults to stderr; tests redirect it via SetOutput.
	logOutput io.Writer = os.Stderr

	// customHandler, when set via SetLogger, takes precedence over
	// Configure so embedding applications keep full control.
	customHandler slog.Handler
)

// SetOutput redirects log output to the given writer.
// Passing nil resets the output to stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	logOutput = w

	handler := slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	DefaultLogger = slog.New(handler)
}

// SetLogger installs a custom slog handler as the global logger.
// Once set, Configure becomes a no-op until SetLogger(nil) is called.
func SetLogger(handler slog.Handler) {
	customHandler = handler
	if handler != nil {
		DefaultLogger = slog.New(handler)
		slog.SetDefault(DefaultLogger)
	}
}

// ParseLevel maps a level name to its slog.Level.
// Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return slog.LevelDebug - 4
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
