package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewFromZap(zap.New(core), level), logs
}

func TestLevelFiltering(t *testing.T) {
	logger, logs := newObserved(LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "warn", logs.All()[0].Message)
	assert.Equal(t, "error", logs.All()[1].Message)

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())
	logger.Debug("debug again")
	assert.Equal(t, 1, logs.FilterMessage("debug again").Len())
}

func TestFieldsAreConverted(t *testing.T) {
	logger, logs := newObserved(LevelDebug)

	logger.Info("body added",
		String("id", "A"),
		Uint32("tick", 3),
		Int("count", 2),
		Float64("distance", 1.5),
		Bool("ok", true),
		Error(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "A", ctx["id"])
	assert.Equal(t, uint32(3), ctx["tick"])
	assert.Equal(t, int64(2), ctx["count"])
	assert.Equal(t, 1.5, ctx["distance"])
	assert.Equal(t, true, ctx["ok"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWithKeepsFields(t *testing.T) {
	logger, logs := newObserved(LevelDebug)

	child := logger.With(String("world", "w1"))
	child.Info("stepped")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "w1", logs.All()[0].ContextMap()["world"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelNone,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	logger.Error("ignored")
	assert.NotNil(t, Provide())
}
