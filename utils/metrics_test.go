package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetricsRecordFetch(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewMetricsWithReader(reader)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFetch(ctx, "Made Trade", 200*time.Millisecond, nil)
	m.RecordFetch(ctx, "Made Trade", 300*time.Millisecond, errors.New("boom"))
	m.RecordListings(ctx, "Made Trade", 7, 3)
	m.RecordOptimization(ctx, true)
	m.RecordOptimization(ctx, false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["scrape.fetches"])
	assert.Equal(t, int64(1), sums["scrape.fetch_errors"])
	assert.Equal(t, int64(7), sums["scrape.listings"])
	assert.Equal(t, int64(3), sums["scrape.listings_matched"])
	assert.Equal(t, int64(2), sums["pricing.optimizations"])
	assert.Equal(t, int64(1), sums["pricing.cache_hits"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordFetch(ctx, "x", time.Second, nil)
	m.RecordOptimization(ctx, true)
	m.RecordInsightError(ctx, "ollama")
	assert.NoError(t, m.Shutdown(ctx))
}
