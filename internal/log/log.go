// Package log holds the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	global *slog.Logger
)

// ParseLevel maps debug, info, warn or error to a slog level.
// Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger writing JSON lines or logfmt-style text to w.
func New(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init installs the stdout logger as both L and slog.Default.
// Production deployments pass json so log shippers can parse lines.
func Init(level string, json bool) {
	l := New(os.Stdout, level, json)
	mu.Lock()
	global = l
	mu.Unlock()
	slog.SetDefault(l)
}

// L returns the logger installed by Init, or slog.Default before that.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return slog.Default()
	}
	return global
}

// Component tags L with a component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}
