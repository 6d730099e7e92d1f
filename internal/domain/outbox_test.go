package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutboxMessageWithID(t *testing.T) {
	msg, err := OutboxMessage{ID: "fixed"}.WithID()
	require.NoError(t, err)
	require.Equal(t, "fixed", msg.ID)

	first, err := OutboxMessage{}.WithID()
	require.NoError(t, err)
	second, err := OutboxMessage{}.WithID()
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
}

func TestOutboxStatsLag(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.Zero(t, OutboxStats{}.Lag(now))
	require.Zero(t, OutboxStats{PendingCount: 1}.Lag(now))
	require.Equal(t, time.Minute, OutboxStats{PendingCount: 2, OldestPendingAt: now.Add(-time.Minute)}.Lag(now))
}

func TestOutboxMessageNotFoundIsPublishError(t *testing.T) {
	require.ErrorIs(t, ErrOutboxMessageNotFound, ErrOutboxPublish)
}

func TestDeadLetterMessage(t *testing.T) {
	letter := DeadLetter{
		OutboxID:      "m-1",
		AggregateType: AggregateOrder,
		AggregateID:   "order-1",
		EventType:     EventOrderPlaced,
		Payload:       []byte(`{"order_id":"order-1"}`),
		PublishError:  "broker down",
	}

	msg := letter.Message()
	require.Equal(t, "m-1", msg.ID)
	require.Equal(t, "order-1", msg.AggregateID)
	require.Equal(t, EventOrderPlaced, msg.EventType)
	require.JSONEq(t, `{"order_id":"order-1"}`, string(msg.Payload))
}
