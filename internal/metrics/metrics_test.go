package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != Scope {
			continue
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestInstrumentsReportToProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	ctx := context.Background()
	RecordRun(ctx, "success", 2*time.Second)
	RecordRun(ctx, "failure", time.Second)
	RecordFetchAttempt(ctx, "agents", "ok")
	RecordRetry(ctx, "agents")
	RecordRows(ctx, "agents", 25)
	RecordRows(ctx, "maps", 0)
	RecordDropped(ctx, "weapons", 2)
	RecordSkipped(ctx)
	RecordArchived(ctx, 3)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sum(t, got["etl.runs"]))
	assert.Equal(t, int64(1), sum(t, got["etl.fetch.attempts"]))
	assert.Equal(t, int64(1), sum(t, got["etl.fetch.retries"]))
	assert.Equal(t, int64(25), sum(t, got["etl.rows.loaded"]))
	assert.Equal(t, int64(2), sum(t, got["etl.records.dropped"]))
	assert.Equal(t, int64(1), sum(t, got["etl.runs.skipped"]))
	assert.Equal(t, int64(3), sum(t, got["etl.runs.archived"]))

	hist, ok := got["etl.run.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}
