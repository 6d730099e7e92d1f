package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	repo := NewOutboxRepository(openStoreForIntegrationTest(t))

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	time.Sleep(5 * time.Millisecond)

	second, err := repo.Enqueue(domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-2",
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"order_id":"order-2"}`),
	})
	require.NoError(t, err)
	require.Equal(t, "outbox-fixed-id", second.ID)

	pending, err := repo.PullPending(0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.JSONEq(t, `{"order_id":"order-1"}`, string(pending[0].Payload))

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(first.ID))
	require.NoError(t, repo.MarkFailed(second.ID))

	pending, err = repo.PullPending(10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.ErrorIs(t, repo.MarkSent("missing"), domain.ErrOutboxMessageNotFound)

	_, err = repo.Enqueue(domain.OutboxMessage{ID: "outbox-fixed-id", AggregateType: domain.AggregateOrder})
	require.ErrorIs(t, err, domain.ErrOutboxDuplicate)
}

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	repo := NewTimelineRepository(openStoreForIntegrationTest(t))

	base := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "o-1", Type: domain.EventOrderPlaced, Occurred: base}))
	require.NoError(t, repo.Append(domain.TimelineEvent{
		OrderID:  "o-1",
		Type:     domain.EventOrderStatusChanged,
		Status:   domain.OrderStatusCompleted,
		Previous: domain.OrderStatusPending,
		Reason:   "completed",
	}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "o-2", Type: domain.EventOrderPlaced, Occurred: base}))

	events, err := repo.List("o-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventOrderPlaced, events[0].Type)
	require.True(t, events[0].Occurred.Equal(base))
	require.Equal(t, "completed", events[1].Reason)
	require.Equal(t, domain.OrderStatusPending, events[1].Previous)
	require.True(t, events[1].Transition())

	none, err := repo.List("missing")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestIdempotencyRepository_PostgresLifecycle(t *testing.T) {
	repo := NewIdempotencyRepository(openStoreForIntegrationTest(t))

	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)
	created, err := repo.CreateProcessing("key-done", "hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	_, err = repo.CreateProcessing("key-done", "hash-1", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	_, err = repo.CreateProcessing("key-done", "hash-2", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone("key-done", []byte(`{"success":true}`), 0))
	got, err := repo.Get("key-done")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.JSONEq(t, `{"success":true}`, string(got.ResponseBody))
	require.True(t, got.TTLAt.Equal(ttl))

	require.ErrorIs(t, repo.MarkFailed("missing", nil, 13), domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get("missing")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRepository_PostgresExpiry(t *testing.T) {
	repo := NewIdempotencyRepository(openStoreForIntegrationTest(t))

	now := time.Now().UTC()
	for i, key := range []string{"expired-1", "expired-2", "expired-3"} {
		_, err := repo.CreateProcessing(key, "h", now.Add(-time.Duration(5-i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing("active", "h", now.Add(time.Hour))
	require.NoError(t, err)

	// Просроченный ключ свободен для нового запроса.
	_, err = repo.CreateProcessing("expired-3", "other", now.Add(time.Hour))
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(now, 1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	removed, err = repo.DeleteExpired(now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get("active")
	require.NoError(t, err)
	_, err = repo.Get("expired-3")
	require.NoError(t, err)
}
