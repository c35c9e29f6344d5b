package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"pharmapulse/pkg/contracts/domain"
)

// IngestMetrics records ingestion and cache telemetry. It satisfies
// dataprocessing.Observer.
type IngestMetrics struct {
	rowsRead       metric.Int64Counter
	rowsDropped    metric.Int64Counter
	rowsRejected   metric.Int64Counter
	filesFailed    metric.Int64Counter
	fileDuration   metric.Float64Histogram
	ingestDuration metric.Float64Histogram
	cacheRebuilds  metric.Int64Counter
	cacheRows      metric.Int64Gauge
}

// NewIngestMetrics creates the ingestion instruments on meter. A nil meter
// yields no-op instruments.
func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}
	m := &IngestMetrics{}
	var err error

	if m.rowsRead, err = meter.Int64Counter("pharma_rows_read_total",
		metric.WithDescription("Fact rows read from source spreadsheets")); err != nil {
		return nil, err
	}
	if m.rowsDropped, err = meter.Int64Counter("pharma_rows_dropped_total",
		metric.WithDescription("Rows dropped for lack of hierarchy context")); err != nil {
		return nil, err
	}
	if m.rowsRejected, err = meter.Int64Counter("pharma_rows_rejected_total",
		metric.WithDescription("Cells rejected by numeric coercion")); err != nil {
		return nil, err
	}
	if m.filesFailed, err = meter.Int64Counter("pharma_files_failed_total",
		metric.WithDescription("Source files that could not be ingested")); err != nil {
		return nil, err
	}
	if m.fileDuration, err = meter.Float64Histogram("pharma_file_parse_duration_seconds",
		metric.WithDescription("Time spent parsing one spreadsheet"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ingestDuration, err = meter.Float64Histogram("pharma_ingest_duration_seconds",
		metric.WithDescription("Duration of a full ingestion run"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.cacheRebuilds, err = meter.Int64Counter("pharma_cache_rebuilds_total",
		metric.WithDescription("Snapshot cache rebuilds")); err != nil {
		return nil, err
	}
	if m.cacheRows, err = meter.Int64Gauge("pharma_cache_rows",
		metric.WithDescription("Rows in the current snapshot")); err != nil {
		return nil, err
	}
	return m, nil
}

// FileParsed records the parse of a single file.
func (m *IngestMetrics) FileParsed(ctx context.Context, path string, dur time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		m.filesFailed.Add(ctx, 1)
		RecordError(ctx, err)
	}
	m.fileDuration.Record(ctx, dur.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RunCompleted records the totals of an ingestion run.
func (m *IngestMetrics) RunCompleted(ctx context.Context, manifest domain.IngestManifest, dur time.Duration) {
	m.rowsRead.Add(ctx, int64(manifest.RowsRead))
	m.rowsDropped.Add(ctx, int64(manifest.RowsDropped))
	m.rowsRejected.Add(ctx, int64(manifest.RowsRejected))
	m.ingestDuration.Record(ctx, dur.Seconds(),
		metric.WithAttributes(attribute.Int("files", manifest.FilesProcessed)))
}

// CacheRebuilt records a snapshot rebuild and the resulting row count.
func (m *IngestMetrics) CacheRebuilt(ctx context.Context, rows int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.cacheRebuilds.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if err == nil {
		m.cacheRows.Record(ctx, int64(rows))
	}
}

// RecordError marks the span in ctx, if recording, as failed with err.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
