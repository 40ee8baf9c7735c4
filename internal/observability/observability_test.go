package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "events", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, 3, line["events"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "TEXT")

	logger.Debug("cycle", "cycle_id", "abc")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "cycle_id=abc")
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.RefreshCycles.WithLabelValues("success").Inc()
	m.FetchDuration.WithLabelValues("decode_error").Observe(0.2)
	m.SnapshotEvents.Set(12)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshCycles.WithLabelValues("success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SnapshotEvents))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))

	// Unregistered collectors can be created repeatedly.
	assert.NotPanics(t, func() { _ = NewMetricsForTesting() })
}
