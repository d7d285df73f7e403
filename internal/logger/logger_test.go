package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "info")
	log.Info("login succeeded", "component", "auth")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "login succeeded", line["msg"])
	assert.Equal(t, "auth", line["component"])
}

func TestDevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "development", "warn")
	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	assert.False(t, strings.Contains(out, "dropped"))
	assert.Contains(t, out, "msg=kept")
}
