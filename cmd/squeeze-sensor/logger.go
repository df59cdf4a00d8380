package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// parseLogLevel converts a config or flag value to a slog level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

// setupLogger creates a text logger writing to w at the given level.
func setupLogger(w io.Writer, level slog.Level) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(level)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	return slog.New(handler), lv
}
