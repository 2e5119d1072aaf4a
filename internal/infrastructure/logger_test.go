package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"salesforecast/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("upload accepted", "rows", 8)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "upload accepted", entries[0]["msg"])
	assert.Equal(t, float64(8), entries[0]["rows"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	logger.Debug("building frame")

	assert.Contains(t, buf.String(), "msg=\"building frame\"")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestRequestAndTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx := WithRequestID(context.Background(), "req-42")
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	logger.InfoContext(ctx, "with ids")
	span.End()

	logger.InfoContext(context.Background(), "without ids")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0]["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "request_id")
	assert.NotContains(t, entries[1], "trace_id")
}

func TestLoggerWithKeepsInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(NewLogger(config.LoggingConfig{Level: "info"}, &buf), "session")

	logger.InfoContext(WithRequestID(context.Background(), "r1"), "stored")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "session", entries[0]["component"])
	assert.Equal(t, "r1", entries[0]["request_id"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warning").String())
	assert.Equal(t, "ERROR", parseLogLevel("ERROR").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}

func TestInitializeLoggerToFile(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)
	assert.Same(t, logger, GetLogger())

	again, err := InitializeLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.Same(t, logger, again, "only the first call configures the logger")

	assert.FileExists(t, path)
	require.NoError(t, CloseLogFile())
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureRequestID(context.Background())
	id := GetRequestID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetRequestID(EnsureRequestID(ctx)), "existing id is kept")
	assert.Empty(t, GetRequestID(context.Background()))

	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info"}, &buf)
	WithError(logger, errors.New("boom")).Info("failed")
	WithError(logger, nil).Info("fine")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0]["error"])
	assert.NotContains(t, entries[1], "error")
}
