// Package logger builds the process slog.Logger.
package logger

import (
	"io"
	"log/slog"
	"os"

	"civitas/pkg/platform/privacylog"
)

// New returns a JSON logger at the given level with privacy sanitization.
// An unparseable level falls back to info.
func New(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(privacylog.WrapHandler(handler))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
