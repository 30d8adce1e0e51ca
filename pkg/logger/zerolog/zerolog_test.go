package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "15:04:05", false, false)
	require.Error(t, err)
}

func TestAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debug", "15:04:05", false, true)
	require.NoError(t, err)

	adapter := NewAdapter(log)
	adapter.WithField("pair", "BTCUSDT").WithError(errors.New("boom")).Warnf("chart %d", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "chart 1", entry["message"])
	require.Equal(t, "BTCUSDT", entry["pair"])
	require.Equal(t, "boom", entry["error"])
}

func TestAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "trace", "15:04:05", false, true)
	require.NoError(t, err)

	adapter := NewAdapter(log)
	adapter.SetLevel(logger.ErrorLevel)
	require.Equal(t, logger.ErrorLevel, adapter.GetLevel())

	adapter.Info("hidden")
	require.Zero(t, buf.Len())

	adapter.Error("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "info", "15:04:05", false, false)
	require.NoError(t, err)

	NewAdapter(log).WithFields(map[string]any{"style": "yang"}).Info("style change")
	require.Contains(t, buf.String(), "[INF]")
	require.Contains(t, buf.String(), "> style change")
	require.Contains(t, buf.String(), "style=yang")
}
