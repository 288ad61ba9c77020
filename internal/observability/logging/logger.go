// Package logging builds the service-tagged JSON loggers used by both
// binaries. Log records are line-delimited JSON on stdout so the
// container runtime can ship them as-is.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger returns a logger tagged with the service name. Unknown
// level strings fall back to info rather than failing startup.
func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes to the given sink; tests pass a buffer.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// ParseLevel maps a config string to a slog level, tolerating the
// "warning" spelling.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
