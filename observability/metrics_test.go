package observability

import (
	"context"
	"testing"
	"time"

	"spinnergy/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricsProvider_RecordsInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.InitializeWithMeterProvider(provider))

	mp.RecordLedgerOperation("credit", "ok", 3*time.Millisecond)
	mp.RecordLedgerOperation("credit", "ok", 2*time.Millisecond)
	mp.RecordLeaderboardSyncFailure("redis")
	mp.RecordRetentionPruned("chat", 4)
	mp.RecordRetentionPruned("meal", 0)
	mp.RecordEventPublished("nats", "ledger_committed")

	data := collect(t, reader)

	ops, ok := data[LedgerOperationsTotal].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, ops.DataPoints, 1)
	assert.Equal(t, int64(2), ops.DataPoints[0].Value)

	pruned, ok := data[RetentionPrunedTotal].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, pruned.DataPoints, 1)
	assert.Equal(t, int64(4), pruned.DataPoints[0].Value)

	assert.Contains(t, data, LedgerOperationDuration)
	assert.Contains(t, data, LeaderboardSyncFailuresTotal)
	assert.Contains(t, data, EventsPublishedTotal)
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordLedgerOperation("debit", "insufficient_funds", time.Millisecond)
		mp.RecordEventPublished("kafka", "account_created")
	})

	var nilProvider *MetricsProvider
	assert.NotPanics(t, func() {
		nilProvider.RecordLeaderboardSyncFailure("timeout")
		assert.NoError(t, nilProvider.Shutdown(context.Background()))
	})
}
