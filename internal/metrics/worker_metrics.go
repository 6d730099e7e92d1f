package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics — метрики outbox worker.
type OutboxMetrics struct {
	PublishAttempts  *prometheus.CounterVec
	PendingRecords   prometheus.Gauge
	OldestPendingAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox worker.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		PublishAttempts: counterVec(reg,
			"stockroom_outbox_publish_attempts_total",
			"Total number of outbox publish attempts grouped by result.",
			"result"),
		PendingRecords: gauge(reg,
			"stockroom_outbox_pending_records",
			"Current number of pending records in transactional outbox."),
		OldestPendingAge: gauge(reg,
			"stockroom_outbox_oldest_pending_age_seconds",
			"Age in seconds of the oldest pending outbox record."),
	}
}

// CleanupMetrics — метрики очистки idempotency ключей.
type CleanupMetrics struct {
	Runs        *prometheus.CounterVec
	Deleted     prometheus.Counter
	LastDeleted prometheus.Gauge
}

// NewCleanupMetrics регистрирует метрики cleanup worker.
func NewCleanupMetrics(reg prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		Runs: counterVec(reg,
			"stockroom_idempotency_cleanup_runs_total",
			"Total number of idempotency cleanup runs grouped by result.",
			"result"),
		Deleted: counter(reg,
			"stockroom_idempotency_cleanup_deleted_total",
			"Total number of deleted expired idempotency records."),
		LastDeleted: gauge(reg,
			"stockroom_idempotency_cleanup_last_deleted",
			"Number of deleted records during the last cleanup run."),
	}
}
