package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/habitsync/sdk/logger"
)

func TestNewJSONFormatWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewDefault(logger.WithOutput(&buf), logger.WithFormat("json"))

	log.With("component", "tasks").InfoContextf(context.Background(), "created %d tasks", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "created 2 tasks", rec["msg"])
	assert.Equal(t, "tasks", rec["component"])
	assert.Equal(t, "INFO", rec["level"])
}

func TestLevelFiltersLowerRecords(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewDefault(logger.WithOutput(&buf), logger.WithLevel("warn"))

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("APP_LOG_LEVEL", "DEBUG")
	t.Setenv("APP_LOG_FORMAT", "json")

	log, err := logger.NewFromEnv("APP", logger.WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.True(t, log.Enabled(context.Background(), -4))
}

func TestLevelNames(t *testing.T) {
	ctx := context.Background()
	for name, want := range map[string]slog.Level{
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
		"bogus":   slog.LevelInfo,
	} {
		log := logger.NewDefault(logger.WithOutput(&bytes.Buffer{}), logger.WithLevel(name))
		assert.True(t, log.Enabled(ctx, want), name)
		assert.False(t, log.Enabled(ctx, want-1), name)
	}
}
