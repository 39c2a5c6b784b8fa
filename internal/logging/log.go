// Package logging holds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	loggerOnce sync.Once
	current    atomic.Pointer[slog.Logger]
)

// Logger returns the shared logger. Until Configure is called it writes text
// to stderr at the level named by LOG_LEVEL (info when unset).
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		if current.Load() == nil {
			current.Store(newLogger(os.Getenv("LOG_LEVEL"), os.Stderr))
		}
	})
	return current.Load()
}

// Configure replaces the shared logger. An empty level falls back to
// LOG_LEVEL; a nil writer means stderr.
func Configure(level string, w io.Writer) *slog.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if w == nil {
		w = os.Stderr
	}
	l := newLogger(level, w)
	current.Store(l)
	loggerOnce.Do(func() {})
	return l
}

// ParseLevel maps debug, warn and error to their slog levels; anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
