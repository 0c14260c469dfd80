// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// New builds a logger writing to w. format is "json", "text" or "pretty"
// (colored, for terminals). Unknown levels fall back to info. Credential
// attributes such as password or refresh_token are redacted in every format.
func New(w io.Writer, level string, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = NewPrettyHandler(w, opts)
	}

	return slog.New(handler)
}

// Setup installs a logger built by New as the slog default.
func Setup(w io.Writer, level string, format string) *slog.Logger {
	log := New(w, level, format)
	slog.SetDefault(log)
	return log
}
