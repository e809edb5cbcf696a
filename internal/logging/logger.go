// Package logging provides the structured logger shared by every
// long-lived component of Core: the dispatcher, the monitor loop, the
// scheduler driver, the sync reconciler, and the prune loops.
package logging

import (
	"log/slog"
	"os"
)

// Logger wraps slog so call sites take a *Logger (never the global slog
// default logger), matching the injection style used throughout Core.
type Logger struct {
	*slog.Logger
}

// New creates a Logger that emits text or JSON lines depending on jsonMode.
func New(jsonMode bool) *Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if jsonMode {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return &Logger{slog.New(handler)}
}

// With returns a Logger with the given structured attributes attached to
// every subsequent record, used by background loops to stamp a component
// name onto all of their log lines.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Component returns a child logger tagged with a "component" attribute,
// the convention every background driver (monitor, scheduler, prune,
// sync) uses so log lines can be filtered by subsystem.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}
