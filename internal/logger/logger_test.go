package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info")

	log.Debug("hidden")
	log.Info("book borrowed", "book_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "book borrowed", line["msg"])
	assert.Equal(t, float64(7), line["book_id"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pretty", "debug").With("request_id", "r-1").WithGroup("http")

	log.Debug("request", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "http.status")
	assert.Contains(t, out, "200")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
