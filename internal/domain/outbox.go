package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus — состояние доставки сообщения outbox.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxPullLimit — размер выборки PullPending при limit<=0.
const OutboxPullLimit = 100

// OutboxMessage — событие заказа, ожидающее публикации в брокер.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// WithID возвращает сообщение с заполненным ID; пустой ID заменяется на UUIDv7,
// чтобы порядок id совпадал с порядком постановки.
func (m OutboxMessage) WithID() (OutboxMessage, error) {
	if m.ID != "" {
		return m, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("generate outbox id: %w", err)
	}
	m.ID = id.String()
	return m, nil
}

// OutboxStats описывает backlog outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Lag — возраст самого старого неотправленного сообщения к моменту now.
func (s OutboxStats) Lag(now time.Time) time.Duration {
	if s.PendingCount == 0 || s.OldestPendingAt.IsZero() {
		return 0
	}
	return now.Sub(s.OldestPendingAt)
}

// DeadLetter — конверт события, которое outbox так и не смог опубликовать.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

// Message восстанавливает исходное outbox-сообщение для повторной публикации.
func (d DeadLetter) Message() OutboxMessage {
	return OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
	}
}
