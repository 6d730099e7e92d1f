// Package ordering реализует транзакцию оформления заказа: проверку остатков,
// расчёт суммы, создание заказа и списание остатков как одну логическую операцию.
package ordering

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/metrics"
	"github.com/vladislavdragonenkov/stockroom/internal/service/events"
)

// CompensationReason — причина компенсирующей отмены заказа.
const CompensationReason = "stock_decrement_failed"

// Engine оформляет заказы.
type Engine struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	recorder *events.Recorder
	metrics  *metrics.OrderMetrics
	lock     *Lock
	logger   *log.Entry
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLock задаёт общий с сервисом статусов Lock.
func WithLock(lock *Lock) Option {
	return func(e *Engine) {
		e.lock = lock
	}
}

// WithRecorder задаёт запись событий в timeline/outbox.
func WithRecorder(recorder *events.Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithMetrics задаёт метрики заказов.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine создаёт движок оформления заказов.
func NewEngine(products domain.ProductRepository, orders domain.OrderRepository, options ...Option) *Engine {
	e := &Engine{
		products: products,
		orders:   orders,
	}
	for _, option := range options {
		option(e)
	}
	if e.lock == nil {
		e.lock = NewLock()
	}
	if e.logger == nil {
		e.logger = log.New().WithField("component", "ordering")
	}
	return e
}

// PlaceOrder проверяет заказ и, если замечаний нет, создаёт его и списывает остатки.
// Замечания валидации возвращаются в Placement и не меняют состояние.
// error возвращается только при сбое хранилища.
func (e *Engine) PlaceOrder(ctx context.Context, customerName string, items []domain.OrderItem) (Placement, error) {
	if err := ctx.Err(); err != nil {
		return Placement{}, err
	}

	started := time.Now()
	e.lock.Lock()
	defer e.lock.Unlock()

	catalog, err := e.catalog(ctx)
	if err != nil {
		return Placement{}, err
	}
	if violations := validate(customerName, items, catalog); len(violations) > 0 {
		return e.reject(violations, started), nil
	}

	// Перечитываем товары: сумма считается по ценам на момент создания заказа.
	catalog, err = e.catalog(ctx)
	if err != nil {
		return Placement{}, err
	}
	total, missing := domain.ItemsTotal(items, func(productID string) (decimal.Decimal, bool) {
		product, ok := catalog[productID]
		return product.Price, ok
	})
	if len(missing) > 0 {
		violations := make(domain.Violations, 0, len(missing))
		for _, line := range missing {
			violations = append(violations, lineViolation(line, items[line], domain.ErrProductNotFound, "Product not found"))
		}
		return e.reject(violations, started), nil
	}

	order, err := e.orders.Create(ctx, domain.OrderDraft{
		CustomerName: customerName,
		Items:        items,
		TotalAmount:  total,
		Status:       domain.OrderStatusPending,
	})
	if err != nil {
		return Placement{}, fmt.Errorf("create order: %w", err)
	}

	deltas := make([]domain.StockDelta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, domain.StockDelta{ProductID: item.ProductID, Delta: -item.Quantity})
	}
	if _, err := e.products.AdjustStock(ctx, deltas); err != nil {
		return Placement{}, e.compensate(ctx, order, err)
	}

	e.recorder.OrderPlaced(order)
	if e.metrics != nil {
		e.metrics.RecordPlaced(time.Since(started))
	}
	e.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"items":    len(order.Items),
		"total":    order.TotalAmount.StringFixed(2),
	}).Info("order placed")

	return Placement{Order: &order}, nil
}

// compensate переводит заказ без списанных остатков в cancelled.
func (e *Engine) compensate(ctx context.Context, order domain.Order, cause error) error {
	logger := e.logger.WithField("order_id", order.ID)
	logger.WithError(cause).Error("stock decrement failed, cancelling order")
	if e.metrics != nil {
		e.metrics.RecordConsistencyFailure()
	}

	cancelled, err := e.orders.UpdateStatus(context.WithoutCancel(ctx), order.ID, domain.OrderStatusCancelled)
	if err != nil {
		logger.WithError(err).Error("compensating cancel failed, order left pending")
		return fmt.Errorf("%w: order %s: %w (compensation failed: %v)", domain.ErrStockDecrementFailed, order.ID, cause, err)
	}

	e.recorder.Compensated(cancelled, CompensationReason)
	return fmt.Errorf("%w: order %s cancelled: %w", domain.ErrStockDecrementFailed, order.ID, cause)
}

func (e *Engine) reject(violations domain.Violations, started time.Time) Placement {
	if e.metrics != nil {
		e.metrics.RecordRejected(rejectionReason(violations), time.Since(started))
	}
	e.logger.WithField("violations", len(violations)).Debug("order rejected")
	return rejected(violations)
}

func (e *Engine) catalog(ctx context.Context) (map[string]domain.Product, error) {
	products, err := e.products.List(ctx, domain.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	catalog := make(map[string]domain.Product, len(products))
	for _, product := range products {
		catalog[product.ID] = product
	}
	return catalog, nil
}
