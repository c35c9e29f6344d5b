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
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"pharmapulse/internal/config"
	"pharmapulse/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTelMetricsOnly(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "pharma-pulse-test",
		MetricsEnabled: true,
	}, "test", quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Nil(t, providers.TracerProvider)
	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)

	m, err := NewIngestMetrics(providers.Meter)
	require.NoError(t, err)
	m.RunCompleted(context.Background(), domain.IngestManifest{RowsRead: 3}, time.Second)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "pharma_rows_read_total")
}

func TestInitializeOTelTwice(t *testing.T) {
	cfg := config.TelemetryConfig{ServiceName: "x", MetricsEnabled: true}
	for i := 0; i < 2; i++ {
		p, err := InitializeOTel(cfg, "test", quietLogger())
		require.NoError(t, err)
		require.NoError(t, p.Shutdown(context.Background()))
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "not an int64 sum: %T", agg)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestIngestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewIngestMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.FileParsed(ctx, "a.xlsx", 10*time.Millisecond, nil)
	m.FileParsed(ctx, "b.xlsx", 5*time.Millisecond, errors.New("corrupt"))
	m.RunCompleted(ctx, domain.IngestManifest{RowsRead: 120, RowsDropped: 4, RowsRejected: 1, FilesProcessed: 2}, time.Second)
	m.CacheRebuilt(ctx, 120, nil)

	got := collect(t, reader)
	assert.Equal(t, int64(120), sumOf(t, got["pharma_rows_read_total"]))
	assert.Equal(t, int64(4), sumOf(t, got["pharma_rows_dropped_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["pharma_rows_rejected_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["pharma_files_failed_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["pharma_cache_rebuilds_total"]))
	assert.Contains(t, got, "pharma_ingest_duration_seconds")
}

func TestNewIngestMetricsNilMeter(t *testing.T) {
	m, err := NewIngestMetrics(nil)
	require.NoError(t, err)
	m.CacheRebuilt(context.Background(), 0, errors.New("boom"))
}
