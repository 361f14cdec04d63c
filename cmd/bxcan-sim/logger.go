package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/bxcan/internal/canlog"
)

func setupLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	l := canlog.New(format, lvl, os.Stderr).With("app", "bxcan-sim")
	canlog.Set(l)
	return l
}
