package status_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/metrics"
	"github.com/vladislavdragonenkov/stockroom/internal/repository"
	"github.com/vladislavdragonenkov/stockroom/internal/service/events"
	"github.com/vladislavdragonenkov/stockroom/internal/service/ordering"
	"github.com/vladislavdragonenkov/stockroom/internal/service/status"
	"github.com/vladislavdragonenkov/stockroom/internal/storage/memory"
)

type env struct {
	products *repository.ProductRepository
	orders   *repository.OrderRepository
	outbox   *memory.OutboxRepository
	engine   *ordering.Engine
	statuses *status.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewCollectionStore()
	m := metrics.NewOrderMetricsWith(prometheus.NewRegistry())
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	recorder := events.NewRecorder(outbox, timeline, m, nil)
	lock := ordering.NewLock()

	e := &env{
		products: repository.NewProductRepository(store, nil),
		orders:   repository.NewOrderRepository(store, nil),
		outbox:   outbox,
	}
	e.engine = ordering.NewEngine(e.products, e.orders,
		ordering.WithLock(lock), ordering.WithRecorder(recorder), ordering.WithMetrics(m))
	e.statuses = status.NewService(status.Config{
		Orders:   e.orders,
		Timeline: timeline,
		Recorder: recorder,
		Metrics:  m,
		Lock:     lock,
	})
	return e
}

func (e *env) place(t *testing.T, qty int) (domain.Product, domain.Order) {
	t.Helper()
	ctx := context.Background()
	p, err := e.products.Create(ctx, domain.ProductInput{
		Name: "A", Price: decimal.RequireFromString("10.00"), StockQuantity: 5, IsAvailable: true,
	})
	require.NoError(t, err)

	placement, err := e.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{{ProductID: p.ID, Quantity: qty}})
	require.NoError(t, err)
	require.True(t, placement.Success())
	return p, *placement.Order
}

func TestSetStatus_OnlyStatusChanges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, order := e.place(t, 3)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusCompleted,
		domain.OrderStatusPending,
		domain.OrderStatusCancelled,
		domain.OrderStatusCompleted,
	} {
		updated, err := e.statuses.SetStatus(ctx, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, updated.Status)
		require.True(t, order.TotalAmount.Equal(updated.TotalAmount))
		require.Equal(t, order.Items, updated.Items)
		require.True(t, order.CreatedAt.Equal(updated.CreatedAt))
		require.Equal(t, order.CustomerName, updated.CustomerName)
	}
}

func TestSetStatus_CancelDoesNotRestock(t *testing.T) {
	ctx := context.Background()

	for _, before := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusCompleted} {
		t.Run(string(before), func(t *testing.T) {
			e := newEnv(t)
			p, order := e.place(t, 3)
			if before != domain.OrderStatusPending {
				_, err := e.statuses.SetStatus(ctx, order.ID, before)
				require.NoError(t, err)
			}

			_, err := e.statuses.SetStatus(ctx, order.ID, domain.OrderStatusCancelled)
			require.NoError(t, err)

			got, err := e.products.Get(ctx, p.ID)
			require.NoError(t, err)
			require.Equal(t, 2, got.StockQuantity)
		})
	}
}

func TestSetStatus_Errors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, order := e.place(t, 1)

	_, err := e.statuses.SetStatus(ctx, "missing", domain.OrderStatusCompleted)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = e.statuses.SetStatus(ctx, order.ID, domain.OrderStatus("shipped"))
	require.ErrorIs(t, err, domain.ErrOrderStatusInvalid)

	stored, err := e.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestSetStatus_SameStatusIsNoop(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, order := e.place(t, 1)
	eventsBefore := len(e.outbox.AllPending())

	updated, err := e.statuses.SetStatus(ctx, order.ID, domain.OrderStatusPending)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, updated.Status)
	require.Len(t, e.outbox.AllPending(), eventsBefore)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, order := e.place(t, 1)

	_, err := e.statuses.SetStatus(ctx, order.ID, domain.OrderStatusCompleted)
	require.NoError(t, err)

	timeline, err := e.statuses.Timeline(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	require.Equal(t, domain.EventOrderPlaced, timeline[0].Type)
	require.Equal(t, domain.EventOrderStatusChanged, timeline[1].Type)

	_, err = e.statuses.Timeline(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}
