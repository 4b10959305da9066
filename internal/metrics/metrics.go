// Package metrics records pipeline counters through the global OpenTelemetry
// meter. Instruments bind to whatever provider internal/telemetry installs;
// without one they are no-ops.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Scope is the instrumentation scope name.
const Scope = "github.com/dwsmith1983/gamedata-etl"

var (
	once    sync.Once
	initErr error

	runsTotal      otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	fetchAttempts  otelmetric.Int64Counter
	fetchRetries   otelmetric.Int64Counter
	rowsLoaded     otelmetric.Int64Counter
	recordsDropped otelmetric.Int64Counter
	runsSkipped    otelmetric.Int64Counter
	runsArchived   otelmetric.Int64Counter
)

func initInstruments() {
	meter := otel.Meter(Scope)
	var err error
	defer func() { initErr = err }()

	if runsTotal, err = meter.Int64Counter("etl.runs",
		otelmetric.WithDescription("Pipeline runs by terminal status")); err != nil {
		return
	}
	if runDuration, err = meter.Float64Histogram("etl.run.duration",
		otelmetric.WithDescription("Wall time of a pipeline run"), otelmetric.WithUnit("s")); err != nil {
		return
	}
	if fetchAttempts, err = meter.Int64Counter("etl.fetch.attempts",
		otelmetric.WithDescription("HTTP attempts by endpoint and outcome")); err != nil {
		return
	}
	if fetchRetries, err = meter.Int64Counter("etl.fetch.retries",
		otelmetric.WithDescription("Backoff waits taken before a retry")); err != nil {
		return
	}
	if rowsLoaded, err = meter.Int64Counter("etl.rows.loaded",
		otelmetric.WithDescription("Rows committed per table")); err != nil {
		return
	}
	if recordsDropped, err = meter.Int64Counter("etl.records.dropped",
		otelmetric.WithDescription("Records dropped during normalization")); err != nil {
		return
	}
	if runsSkipped, err = meter.Int64Counter("etl.runs.skipped",
		otelmetric.WithDescription("Scheduled runs skipped while the breaker is open")); err != nil {
		return
	}
	runsArchived, err = meter.Int64Counter("etl.runs.archived",
		otelmetric.WithDescription("Run history rows mirrored to the archive"))
}

func ready() bool {
	once.Do(initInstruments)
	return initErr == nil
}

// RecordRun counts a finished run and its duration.
func RecordRun(ctx context.Context, status string, d time.Duration) {
	if !ready() {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	runsTotal.Add(ctx, 1, attrs)
	runDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFetchAttempt counts one HTTP attempt.
func RecordFetchAttempt(ctx context.Context, endpoint, outcome string) {
	if !ready() {
		return
	}
	fetchAttempts.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
}

// RecordRetry counts one backoff wait.
func RecordRetry(ctx context.Context, endpoint string) {
	if !ready() {
		return
	}
	fetchRetries.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordRows counts rows committed for a table.
func RecordRows(ctx context.Context, entity string, n int) {
	if !ready() || n == 0 {
		return
	}
	rowsLoaded.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("entity", entity)))
}

// RecordDropped counts records dropped during normalization.
func RecordDropped(ctx context.Context, entity string, n int) {
	if !ready() || n == 0 {
		return
	}
	recordsDropped.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("entity", entity)))
}

// RecordSkipped counts a scheduled run skipped by the breaker.
func RecordSkipped(ctx context.Context) {
	if !ready() {
		return
	}
	runsSkipped.Add(ctx, 1)
}

// RecordArchived counts run history rows mirrored to the archive.
func RecordArchived(ctx context.Context, n int) {
	if !ready() || n == 0 {
		return
	}
	runsArchived.Add(ctx, int64(n))
}
