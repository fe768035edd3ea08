// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Setup installs the default JSON logger at the given level. Unknown levels
// fall back to info.
func Setup(logLevel string) {
	level, ok := levels[strings.ToLower(strings.TrimSpace(logLevel))]
	if !ok {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// WithModule returns a logger scoped to one engine module.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
