package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/taskcore/internal/config"
)

// Setup builds the process logger from cfg, installs it as slog's default
// and returns it. Records go to stdout as JSON, or as text when
// cfg.Format is "text", and carry the attributes stored in their context
// with AppendAttrs.
func Setup(cfg config.LoggingConfig) (*slog.Logger, error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.LoggingConfig, out io.Writer) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn("unknown log level, using info",
			"configured_level", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(NewContextHandler(handler))
	slog.SetDefault(logger)
	return logger, nil
}

// ParseLevel parses a case-insensitive level name.
// It returns slog.LevelInfo and false for unknown names.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
