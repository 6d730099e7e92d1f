package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestOrderMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWith(reg)

	m.RecordPlaced(5 * time.Millisecond)
	m.RecordPlaced(time.Millisecond)
	m.RecordRejected("insufficient_stock", time.Millisecond)
	m.RecordConsistencyFailure()
	m.RecordStatusChange("completed")
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()

	require.Equal(t, 2.0, testutil.ToFloat64(m.placed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("insufficient_stock")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.consistencyFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges.WithLabelValues("completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.timelineEvents))
	require.Equal(t, 1.0, testutil.ToFloat64(m.outboxEvents))

	metric := &dto.Metric{}
	require.NoError(t, m.placementDuration.Write(metric))
	require.Equal(t, uint64(3), metric.GetHistogram().GetSampleCount())
}

func TestOrderMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWith(reg)
	second := NewOrderMetricsWith(reg)

	first.RecordConsistencyFailure()
	require.Equal(t, 1.0, testutil.ToFloat64(second.consistencyFailures))
}

func TestRegister_PanicsOnTypeClash(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge(reg, "stockroom_clash", "gauge first")

	require.Panics(t, func() {
		counter(reg, "stockroom_clash", "counter second")
	})
}

func TestWorkerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	outbox := NewOutboxMetrics(reg)
	cleanup := NewCleanupMetrics(reg)

	outbox.PublishAttempts.WithLabelValues("sent").Inc()
	outbox.PendingRecords.Set(3)
	cleanup.Deleted.Add(7)

	require.Equal(t, 1.0, testutil.ToFloat64(outbox.PublishAttempts.WithLabelValues("sent")))
	require.Equal(t, 3.0, testutil.ToFloat64(outbox.PendingRecords))
	require.Equal(t, 7.0, testutil.ToFloat64(cleanup.Deleted))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}
