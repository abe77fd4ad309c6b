package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"docrag/config"
)

var level = new(slog.LevelVar)

// Setup installs the default slog logger described by cfg, writing to
// stderr so that command output on stdout stays clean.
func Setup(cfg config.LoggingConfig) error {
	return SetupWriter(os.Stderr, cfg)
}

func SetupWriter(w io.Writer, cfg config.LoggingConfig) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// SetLevel changes the level of the logger installed by Setup.
func SetLevel(l slog.Level) {
	level.Set(l)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
