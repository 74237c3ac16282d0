package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("game finished", "game_id", "abc", "first_score", 4)
	With("user_id", "u1").Warnw("answer rejected")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "game finished", entries[0].Message)
	assert.Equal(t, "abc", entries[0].ContextMap()["game_id"])
	assert.EqualValues(t, 4, entries[0].ContextMap()["first_score"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "u1", entries[1].ContextMap()["user_id"])
}

func TestLoggingBeforeInitDoesNotPanic(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() {
		Debug("quiet")
		Error("still quiet", "error", "x")
	})
}
