package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelInfo, JSON: true, Output: &buf})

	l.Debug("hidden")
	l.With(Guild("g1"), Command("add")).Info("command handled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "command handled", entry["msg"])
	assert.Equal(t, "g1", entry["guild_id"])
	assert.Equal(t, "add", entry["command"])
	assert.NotContains(t, entry, "source")
}

func TestNew_TextAddsSourceAtDebug(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Level: slog.LevelDebug, Output: &buf}).Debug("tick")
	assert.Contains(t, buf.String(), "source=")
	assert.Contains(t, buf.String(), "msg=tick")
}

func TestFromContext(t *testing.T) {
	fallback := Discard()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, slog.Default(), FromContext(context.Background(), nil))

	scoped := Discard().With(User("u1"))
	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
