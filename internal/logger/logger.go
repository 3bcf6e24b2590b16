// Package logger provides structured logging configuration using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Format string    // "text" or "json"
	Output io.Writer // defaults to os.Stderr
}

// NewLogger creates a configured slog.Logger.
func NewLogger(cfg Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		// Add a source location for debug and error levels
		AddSource: cfg.Level <= slog.LevelDebug,
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a level name into a slog.Level.
// Valid values: DEBUG, INFO, WARN, WARNING, ERROR. Anything else returns def.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return def
	}
}

// DefaultConfig returns the default logger configuration.
// AVSCORE_LOG_LEVEL sets the level (default INFO) and
// AVSCORE_LOG_FORMAT selects "text" or "json" (default text).
func DefaultConfig() Config {
	format := "text"
	if strings.EqualFold(os.Getenv("AVSCORE_LOG_FORMAT"), "json") {
		format = "json"
	}

	return Config{
		Level:  ParseLevel(os.Getenv("AVSCORE_LOG_LEVEL"), slog.LevelInfo),
		Format: format,
	}
}
