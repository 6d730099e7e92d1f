package domain

import "time"

// Типы событий заказа (timeline и outbox).
const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCompensated   = "OrderCompensated"
)

// AggregateOrder — тип агрегата для outbox-сообщений заказа.
const AggregateOrder = "order"

// TimelineEvent — запись истории заказа.
// Status — статус заказа после события, Previous — до него (пусто для OrderPlaced).
type TimelineEvent struct {
	OrderID  string
	Type     string
	Status   OrderStatus
	Previous OrderStatus
	Reason   string
	Occurred time.Time
}

// Transition сообщает, меняло ли событие статус заказа.
func (e TimelineEvent) Transition() bool {
	return e.Previous != "" && e.Previous != e.Status
}
