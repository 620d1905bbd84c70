package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "warn", true).Info("dropped")
	assert.Empty(t, buf.String())

	New(&buf, "debug", true).Debug("kept", "session_id", "s1")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"session_id":"s1"`)

	buf.Reset()
	New(&buf, "info", false).Info("hello", "component", "web")
	assert.Contains(t, buf.String(), "component=web")
}
