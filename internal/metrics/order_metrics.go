package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics — метрики оформления заказов и смены статусов.
type OrderMetrics struct {
	placed              prometheus.Counter
	rejected            *prometheus.CounterVec
	placementDuration   prometheus.Histogram
	consistencyFailures prometheus.Counter
	statusChanges       *prometheus.CounterVec
	timelineEvents      prometheus.Counter
	outboxEvents        prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWith(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWith регистрирует метрики в переданном registerer.
func NewOrderMetricsWith(reg prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		placed: counter(reg,
			"stockroom_orders_placed_total",
			"Total number of orders placed successfully."),
		rejected: counterVec(reg,
			"stockroom_orders_rejected_total",
			"Total number of rejected order placements grouped by first violation.",
			"reason"),
		placementDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockroom_order_placement_duration_seconds",
			Help:    "Duration of the order placement transaction in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}), "stockroom_order_placement_duration_seconds"),
		consistencyFailures: counter(reg,
			"stockroom_order_consistency_failures_total",
			"Orders persisted without a matching stock decrement (compensated)."),
		statusChanges: counterVec(reg,
			"stockroom_order_status_changes_total",
			"Total number of order status changes grouped by target status.",
			"status"),
		timelineEvents: counter(reg,
			"stockroom_timeline_events_total",
			"Total number of timeline events recorded."),
		outboxEvents: counter(reg,
			"stockroom_outbox_events_total",
			"Total number of events enqueued into the transactional outbox."),
	}
}

func (m *OrderMetrics) RecordPlaced(duration time.Duration) {
	m.placed.Inc()
	m.placementDuration.Observe(duration.Seconds())
}

// RecordRejected учитывает отклонённый заказ; reason — код первой ошибки валидации.
func (m *OrderMetrics) RecordRejected(reason string, duration time.Duration) {
	m.rejected.WithLabelValues(reason).Inc()
	m.placementDuration.Observe(duration.Seconds())
}

func (m *OrderMetrics) RecordConsistencyFailure() {
	m.consistencyFailures.Inc()
}

func (m *OrderMetrics) RecordStatusChange(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
