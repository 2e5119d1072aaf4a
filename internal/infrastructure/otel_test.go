package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTelNone(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
	}, "dev", quietLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	_, span := providers.Tracer.Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()

	metrics, err := NewMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordForecast(context.Background(), "upload", "success", time.Second, 10)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTelUnsupported(t *testing.T) {
	_, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "otlp", MetricExporter: "none"}, "dev", quietLogger())
	assert.ErrorContains(t, err, "unsupported trace exporter")

	_, err = InitializeOTel(config.TelemetryConfig{TraceExporter: "none", MetricExporter: "statsd"}, "dev", quietLogger())
	assert.ErrorContains(t, err, "unsupported metric exporter")
}

func TestPrometheusEndpoint(t *testing.T) {
	cfg := config.Default().Telemetry
	providers, err := InitializeOTel(cfg, "dev", quietLogger())
	require.NoError(t, err)
	defer func() { _ = providers.Shutdown(context.Background()) }()
	require.NotNil(t, providers.PrometheusHTTP)

	// a second initialization uses its own registry
	second, err := InitializeOTel(cfg, "dev", quietLogger())
	require.NoError(t, err)
	defer func() { _ = second.Shutdown(context.Background()) }()

	metrics, err := NewMetrics(providers.Meter)
	require.NoError(t, err)
	ctx := context.Background()
	metrics.RecordForecast(ctx, "upload", "success", 250*time.Millisecond, 480)
	metrics.RecordForecast(ctx, "reforecast", "model_error", time.Millisecond, 0)
	metrics.RecordModelLoad(ctx, errors.New("missing"))

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, body, "forecast_requests")
	assert.Contains(t, body, `outcome="model_error"`)
	assert.Contains(t, body, "forecast_duration")
	assert.Contains(t, body, "future_frame_rows")
	assert.Contains(t, body, "model_loads")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordForecast(context.Background(), "upload", "success", time.Second, 1)
		m.RecordModelLoad(context.Background(), nil)
	})
	assert.NotNil(t, NoopMetrics())
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
	}, "dev", quietLogger())
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, TraceIDFromContext(ctx), "noop spans carry no trace id")
	RecordError(ctx, errors.New("ignored"))
}
