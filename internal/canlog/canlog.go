// Package canlog is the driver's process-wide structured logger: a
// replaceable *slog.Logger behind an atomic pointer, with a default text
// handler on stderr.
package canlog

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Store(l)
}

// L returns the current global logger.
func L() *slog.Logger { return logger.Load() }

// Set replaces the global logger.
func Set(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// New creates a logger with the given level, format ("text" or "json"), and
// optional writer (defaults to stderr).
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}

// Component returns a logger pre-tagged with the given subsystem name
// ("device", "txengine", "socketbridge", "cantrace"), used by internal/canhw,
// internal/cansocketbridge and internal/cantrace so log lines are
// attributable without each call site repeating the tag.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}
