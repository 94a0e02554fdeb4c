// Package logger centralizes slog handler construction so every entry
// point configures logging the same way.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a slog logger writing to stderr. Level is one of debug,
// info, warn, error; format is text or json. Unknown values fall back
// to info/text.
func New(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	return slog.New(h)
}
