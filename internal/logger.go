package internal

import (
	"io"
	"log/slog"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// NewLogger returns a text logger in development and a JSON logger
// elsewhere. Unknown levels fall back to info. Every record carries the
// service name so shipped logs can be filtered.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	logLevel, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug && env != "development",
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "challan", "env", env)
}
