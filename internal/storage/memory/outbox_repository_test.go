package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewOutboxRepository()

	payload := []byte(`{"status":"pending"}`)
	saved, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderPlaced,
		Payload:       payload,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	payload[0] = 'X'

	pending, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, saved.ID, pending[0].ID)
	require.JSONEq(t, `{"status":"pending"}`, string(pending[0].Payload))
}

func TestOutboxRepository_PullPreservesOrderAndLimit(t *testing.T) {
	repo := NewOutboxRepository()
	for _, id := range []string{"m-3", "m-1", "m-2"} {
		_, err := repo.Enqueue(domain.OutboxMessage{ID: id})
		require.NoError(t, err)
	}

	pending, err := repo.PullPending(2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "m-3", pending[0].ID)
	require.Equal(t, "m-1", pending[1].ID)
}

func TestOutboxRepository_RejectsDuplicateID(t *testing.T) {
	repo := NewOutboxRepository()
	_, err := repo.Enqueue(domain.OutboxMessage{ID: "m-1"})
	require.NoError(t, err)

	_, err = repo.Enqueue(domain.OutboxMessage{ID: "m-1"})
	require.ErrorIs(t, err, domain.ErrOutboxDuplicate)
	require.Len(t, repo.AllPending(), 1)
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := NewOutboxRepository()

	saved, err := repo.Enqueue(domain.OutboxMessage{AggregateType: domain.AggregateOrder})
	require.NoError(t, err)

	require.NoError(t, repo.MarkSent(saved.ID))
	require.Empty(t, repo.AllPending())
	require.NoError(t, repo.MarkFailed(saved.ID))

	err = repo.MarkFailed("missing")
	require.ErrorIs(t, err, domain.ErrOutboxMessageNotFound)
	require.ErrorIs(t, err, domain.ErrOutboxPublish)
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo := NewOutboxRepository()

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
	require.True(t, stats.OldestPendingAt.IsZero())

	first, err := repo.Enqueue(domain.OutboxMessage{})
	require.NoError(t, err)
	second, err := repo.Enqueue(domain.OutboxMessage{})
	require.NoError(t, err)
	require.NoError(t, repo.MarkSent(first.ID))

	stats, err = repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)
	require.Equal(t, repo.byID[second.ID].createdAt, stats.OldestPendingAt)
}
