// Package status меняет статусы заказов. Переходы разрешены между любыми
// объявленными статусами; остатки товаров при этом не меняются.
package status

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/metrics"
	"github.com/vladislavdragonenkov/stockroom/internal/service/events"
	"github.com/vladislavdragonenkov/stockroom/internal/service/ordering"
)

// Service — сервис смены статусов заказа.
type Service struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	recorder *events.Recorder
	metrics  *metrics.OrderMetrics
	lock     *ordering.Lock
	logger   *log.Entry
}

// Config собирает зависимости сервиса. Lock должен быть тем же, что у движка заказов.
type Config struct {
	Orders   domain.OrderRepository
	Timeline domain.TimelineRepository
	Recorder *events.Recorder
	Metrics  *metrics.OrderMetrics
	Lock     *ordering.Lock
	Logger   *log.Entry
}

// NewService создаёт сервис статусов.
func NewService(cfg Config) *Service {
	if cfg.Lock == nil {
		cfg.Lock = ordering.NewLock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New().WithField("component", "order-status")
	}
	return &Service{
		orders:   cfg.Orders,
		timeline: cfg.Timeline,
		recorder: cfg.Recorder,
		metrics:  cfg.Metrics,
		lock:     cfg.Lock,
		logger:   cfg.Logger,
	}
}

// SetStatus переводит заказ в status. Тот же статус — no-op.
func (s *Service) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrOrderStatusInvalid, status)
	}
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.WithError(err).WithField("order_id", orderID).Error("failed to persist status")
		}
		return domain.Order{}, err
	}

	s.recorder.StatusChanged(updated, current.Status)
	if s.metrics != nil {
		s.metrics.RecordStatusChange(string(status))
	}
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     current.Status,
		"to":       status,
	}).Info("order status changed")

	return updated, nil
}

// Timeline возвращает события заказа в хронологическом порядке.
func (s *Service) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(orderID)
}
