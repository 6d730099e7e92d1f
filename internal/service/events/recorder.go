// Package events записывает события заказа в timeline и transactional outbox.
package events

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/metrics"
)

// Recorder — общая точка эмиссии событий для движка заказов и сервиса статусов.
// Ошибки записи логируются и не влияют на результат бизнес-операции.
type Recorder struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewRecorder создаёт Recorder. outbox и timeline могут быть nil.
func NewRecorder(outbox domain.OutboxRepository, timeline domain.TimelineRepository, m *metrics.OrderMetrics, logger *log.Entry) *Recorder {
	if logger == nil {
		logger = log.New().WithField("component", "events")
	}
	return &Recorder{
		outbox:   outbox,
		timeline: timeline,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OrderPlaced фиксирует создание заказа.
func (r *Recorder) OrderPlaced(order domain.Order) {
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})
	}
	r.record(order, "", domain.EventOrderPlaced, "", map[string]any{
		"customer_name": order.CustomerName,
		"total_amount":  json.Number(order.TotalAmount.StringFixed(2)),
		"status":        string(order.Status),
		"items":         items,
	})
}

// StatusChanged фиксирует смену статуса заказа.
func (r *Recorder) StatusChanged(order domain.Order, previous domain.OrderStatus) {
	r.record(order, previous, domain.EventOrderStatusChanged, "", map[string]any{
		"previous_status": string(previous),
		"status":          string(order.Status),
	})
}

// Compensated фиксирует компенсирующую отмену заказа.
func (r *Recorder) Compensated(order domain.Order, reason string) {
	r.record(order, domain.OrderStatusPending, domain.EventOrderCompensated, reason, map[string]any{
		"status": string(order.Status),
	})
}

func (r *Recorder) record(order domain.Order, previous domain.OrderStatus, eventType, reason string, payload map[string]any) {
	if r == nil {
		return
	}
	orderID := order.ID

	occurred := r.now()
	payload["order_id"] = orderID
	payload["ts"] = occurred.Format(time.RFC3339Nano)
	if reason != "" {
		payload["reason"] = reason
	}

	fields := log.Fields{"order_id": orderID, "event": eventType}

	if r.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			r.logger.WithError(err).WithFields(fields).Error("marshal event failed")
		} else if _, err := r.outbox.Enqueue(domain.OutboxMessage{
			AggregateType: domain.AggregateOrder,
			AggregateID:   orderID,
			EventType:     eventType,
			Payload:       data,
		}); err != nil {
			r.logger.WithError(err).WithFields(fields).Error("enqueue event failed")
		} else if r.metrics != nil {
			r.metrics.RecordOutboxEvent()
		}
	}

	if r.timeline != nil {
		err := r.timeline.Append(domain.TimelineEvent{
			OrderID:  orderID,
			Type:     eventType,
			Status:   order.Status,
			Previous: previous,
			Reason:   reason,
			Occurred: occurred,
		})
		if err != nil {
			r.logger.WithError(err).WithFields(fields).Warn("append timeline event failed")
		} else if r.metrics != nil {
			r.metrics.RecordTimelineEvent()
		}
	}
}
