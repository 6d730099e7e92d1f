package ordering_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/metrics"
	"github.com/vladislavdragonenkov/stockroom/internal/repository"
	"github.com/vladislavdragonenkov/stockroom/internal/service/events"
	"github.com/vladislavdragonenkov/stockroom/internal/service/ordering"
	"github.com/vladislavdragonenkov/stockroom/internal/storage/memory"
)

type fixture struct {
	products *repository.ProductRepository
	orders   *repository.OrderRepository
	outbox   *memory.OutboxRepository
	timeline domain.TimelineRepository
	registry *prometheus.Registry
	engine   *ordering.Engine
}

func newFixture(t *testing.T, wrap func(domain.ProductRepository) domain.ProductRepository, options ...ordering.Option) *fixture {
	t.Helper()

	store := memory.NewCollectionStore()
	f := &fixture{
		products: repository.NewProductRepository(store, nil),
		orders:   repository.NewOrderRepository(store, nil),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
		registry: prometheus.NewRegistry(),
	}
	m := metrics.NewOrderMetricsWith(f.registry)

	var products domain.ProductRepository = f.products
	if wrap != nil {
		products = wrap(products)
	}
	options = append([]ordering.Option{
		ordering.WithMetrics(m),
		ordering.WithRecorder(events.NewRecorder(f.outbox, f.timeline, m, nil)),
	}, options...)
	f.engine = ordering.NewEngine(products, f.orders, options...)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int, available bool) domain.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), domain.ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsAvailable:   available,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.orders.List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	return len(orders)
}

func line(productID string, qty int) domain.OrderItem {
	return domain.OrderItem{ProductID: productID, Quantity: qty}
}

func TestPlaceOrder_StockScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.product(t, "A", "10.00", 5, true)

	first, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 3)})
	require.NoError(t, err)
	require.True(t, first.Success())
	require.Equal(t, "30.00", first.Order.TotalAmount.StringFixed(2))
	require.Equal(t, domain.OrderStatusPending, first.Order.Status)
	require.Equal(t, 2, f.stock(t, a.ID))

	second, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 3)})
	require.NoError(t, err)
	require.False(t, second.Success())
	require.Nil(t, second.Order)
	require.True(t, second.Violations.Has(domain.ErrInsufficientStock))
	require.Equal(t, []string{`Not enough stock for "A". Available: 2, Requested: 3`}, second.Errors())
	require.Equal(t, 2, f.stock(t, a.ID))
	require.Equal(t, 1, f.orderCount(t))
}

func TestPlaceOrder_UnavailableProductRejected(t *testing.T) {
	f := newFixture(t, nil)
	p := f.product(t, "Webcam", "59.99", 100, false)

	placement, err := f.engine.PlaceOrder(context.Background(), "Jane", []domain.OrderItem{line(p.ID, 1)})
	require.NoError(t, err)
	require.False(t, placement.Success())
	require.True(t, placement.Violations.Has(domain.ErrProductUnavailable))
	require.Equal(t, []string{`Product "Webcam" is not available`}, placement.Errors())
	require.Equal(t, 100, f.stock(t, p.ID))
	require.Zero(t, f.orderCount(t))
}

func TestPlaceOrder_SingleBadLineRejectsWholeOrder(t *testing.T) {
	f := newFixture(t, nil)
	a := f.product(t, "A", "1.00", 10, true)
	b := f.product(t, "B", "2.00", 1, true)

	placement, err := f.engine.PlaceOrder(context.Background(), "Jane", []domain.OrderItem{
		line(a.ID, 4),
		line(b.ID, 2),
	})
	require.NoError(t, err)
	require.False(t, placement.Success())
	require.Len(t, placement.Violations, 1)
	require.Equal(t, 1, placement.Violations[0].Line)
	require.Equal(t, 10, f.stock(t, a.ID))
	require.Equal(t, 1, f.stock(t, b.ID))
	require.Zero(t, f.orderCount(t))
	require.Empty(t, f.outbox.AllPending())
}

func TestPlaceOrder_DecrementsExactly(t *testing.T) {
	f := newFixture(t, nil)
	a := f.product(t, "A", "1.50", 10, true)
	b := f.product(t, "B", "2.25", 4, true)
	c := f.product(t, "C", "9.99", 7, true)

	placement, err := f.engine.PlaceOrder(context.Background(), "Jane", []domain.OrderItem{
		line(a.ID, 3),
		line(b.ID, 4),
	})
	require.NoError(t, err)
	require.True(t, placement.Success())
	require.Equal(t, "13.50", placement.Order.TotalAmount.StringFixed(2))
	require.Equal(t, 7, f.stock(t, a.ID))
	require.Equal(t, 0, f.stock(t, b.ID))
	require.Equal(t, 7, f.stock(t, c.ID))
}

func TestPlaceOrder_DuplicateLinesShareStock(t *testing.T) {
	ctx := context.Background()

	t.Run("fits", func(t *testing.T) {
		f := newFixture(t, nil)
		a := f.product(t, "A", "10.00", 5, true)

		placement, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 2), line(a.ID, 3)})
		require.NoError(t, err)
		require.True(t, placement.Success())
		require.Len(t, placement.Order.Items, 2)
		require.Equal(t, "50.00", placement.Order.TotalAmount.StringFixed(2))
		require.Equal(t, 0, f.stock(t, a.ID))
	})

	t.Run("exceeds", func(t *testing.T) {
		f := newFixture(t, nil)
		a := f.product(t, "A", "10.00", 5, true)

		placement, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 3), line(a.ID, 3)})
		require.NoError(t, err)
		require.False(t, placement.Success())
		require.Equal(t, []string{`Not enough stock for "A". Available: 2, Requested: 3`}, placement.Errors())
		require.Equal(t, 5, f.stock(t, a.ID))
	})
}

func TestPlaceOrder_TotalSurvivesPriceChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.product(t, "A", "0.10", 100, true)

	placement, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 3)})
	require.NoError(t, err)
	require.True(t, placement.Success())
	require.True(t, decimal.RequireFromString("0.30").Equal(placement.Order.TotalAmount))

	newPrice := decimal.RequireFromString("99.00")
	_, err = f.products.Update(ctx, a.ID, domain.ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	stored, err := f.orders.Get(ctx, placement.Order.ID)
	require.NoError(t, err)
	require.Equal(t, "0.30", stored.TotalAmount.StringFixed(2))
}

func TestPlaceOrder_AggregatesViolations(t *testing.T) {
	f := newFixture(t, nil)
	a := f.product(t, "A", "1.00", 1, true)

	placement, err := f.engine.PlaceOrder(context.Background(), "   ", []domain.OrderItem{
		line("", 1),
		line(a.ID, 0),
		line("ghost", 1),
	})
	require.NoError(t, err)
	require.False(t, placement.Success())
	require.Equal(t, []string{
		"Customer name cannot be empty",
		"Product must be selected",
		"Quantity must be greater than 0",
		"Product not found",
	}, placement.Errors())
	require.Equal(t, "customer_name", placement.Violations[0].Field)
	require.Equal(t, "items[1].quantity", placement.Violations[2].Field)
	require.ErrorIs(t, placement.Violations.Err(), domain.ErrOrderRejected)

	require.Equal(t, 1.0, gatheredValue(t, f.registry, "stockroom_orders_rejected_total"))
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture(t, nil)

	placement, err := f.engine.PlaceOrder(context.Background(), "Jane", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Order must contain at least one item"}, placement.Errors())
	require.True(t, placement.Violations.Has(domain.ErrItemsRequired))
}

// vanishingProducts отдаёт полный список при первом чтении и пустой при следующих,
// имитируя удаление товара между проверкой и расчётом суммы.
type vanishingProducts struct {
	domain.ProductRepository
	mu    sync.Mutex
	reads int
}

func (v *vanishingProducts) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, error) {
	v.mu.Lock()
	v.reads++
	reads := v.reads
	v.mu.Unlock()
	if reads > 1 {
		return nil, nil
	}
	return v.ProductRepository.List(ctx, filter)
}

func TestPlaceOrder_ProductVanishesBeforeTotal(t *testing.T) {
	f := newFixture(t, func(p domain.ProductRepository) domain.ProductRepository {
		return &vanishingProducts{ProductRepository: p}
	})
	a := f.product(t, "A", "10.00", 5, true)

	placement, err := f.engine.PlaceOrder(context.Background(), "Jane", []domain.OrderItem{line(a.ID, 1)})
	require.NoError(t, err)
	require.False(t, placement.Success())
	require.True(t, placement.Violations.Has(domain.ErrProductNotFound))
	require.Zero(t, f.orderCount(t))
	require.Equal(t, 5, f.stock(t, a.ID))
}

type brokenStock struct {
	domain.ProductRepository
}

func (brokenStock) AdjustStock(context.Context, []domain.StockDelta) ([]domain.Product, error) {
	return nil, errors.New("disk full")
}

func TestPlaceOrder_CompensatesFailedDecrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(p domain.ProductRepository) domain.ProductRepository {
		return brokenStock{ProductRepository: p}
	})
	a := f.product(t, "A", "10.00", 5, true)

	placement, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 2)})
	require.ErrorIs(t, err, domain.ErrStockDecrementFailed)
	require.Contains(t, err.Error(), "disk full")
	require.Nil(t, placement.Order)

	orders, err := f.orders.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, domain.OrderStatusCancelled, orders[0].Status)
	require.Equal(t, 5, f.stock(t, a.ID))

	timeline, err := f.timeline.List(orders[0].ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	require.Equal(t, domain.EventOrderCompensated, timeline[0].Type)
	require.Equal(t, ordering.CompensationReason, timeline[0].Reason)

	require.Equal(t, 1.0, gatheredValue(t, f.registry, "stockroom_order_consistency_failures_total"))
}

// editingStock перед списанием запускает правку товара через Catalog
// и даёт ей время обогнать списание.
type editingStock struct {
	domain.ProductRepository
	edit    func()
	done    chan struct{}
	blocked bool
}

func (e *editingStock) AdjustStock(ctx context.Context, deltas []domain.StockDelta) ([]domain.Product, error) {
	go func() {
		defer close(e.done)
		e.edit()
	}()
	select {
	case <-e.done:
	case <-time.After(50 * time.Millisecond):
		e.blocked = true
	}
	return e.ProductRepository.AdjustStock(ctx, deltas)
}

func TestPlaceOrder_CatalogEditWaitsForPlacement(t *testing.T) {
	ctx := context.Background()
	lock := ordering.NewLock()
	editor := &editingStock{done: make(chan struct{})}
	f := newFixture(t, func(p domain.ProductRepository) domain.ProductRepository {
		editor.ProductRepository = p
		return editor
	}, ordering.WithLock(lock))
	catalog := ordering.NewCatalog(f.products, lock)
	a := f.product(t, "A", "10.00", 5, true)

	zero := 0
	var editErr error
	editor.edit = func() {
		_, editErr = catalog.Update(ctx, a.ID, domain.ProductPatch{StockQuantity: &zero})
	}

	placement, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line(a.ID, 2)})
	require.NoError(t, err)
	require.True(t, placement.Success())
	require.True(t, editor.blocked)
	require.Equal(t, domain.OrderStatusPending, placement.Order.Status)

	<-editor.done
	require.NoError(t, editErr)
	require.Equal(t, 0, f.stock(t, a.ID))

	orders, err := f.orders.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, domain.OrderStatusPending, orders[0].Status)
}

func TestCatalog_DeleteWaitsForLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	lock := ordering.NewLock()
	catalog := ordering.NewCatalog(f.products, lock)
	a, err := catalog.Create(ctx, domain.ProductInput{Name: "A", Price: decimal.RequireFromString("1.00"), StockQuantity: 1, IsAvailable: true})
	require.NoError(t, err)

	lock.Lock()
	deleted := make(chan bool, 1)
	go func() {
		ok, _ := catalog.Delete(ctx, a.ID)
		deleted <- ok
	}()
	require.Never(t, func() bool { return len(deleted) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	lock.Unlock()

	require.True(t, <-deleted)
	_, err = f.products.Get(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPlaceOrder_RecordsPlacedEvent(t *testing.T) {
	f := newFixture(t, nil)
	a := f.product(t, "A", "10.00", 5, true)

	placement, err := f.engine.PlaceOrder(context.Background(), "Jane", []domain.OrderItem{line(a.ID, 1)})
	require.NoError(t, err)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderPlaced, pending[0].EventType)
	require.Equal(t, placement.Order.ID, pending[0].AggregateID)
	require.Equal(t, 1.0, gatheredValue(t, f.registry, "stockroom_orders_placed_total"))
}

func TestPlaceOrder_ConcurrentCallersNeverOversell(t *testing.T) {
	f := newFixture(t, nil)
	a := f.product(t, "A", "1.00", 10, true)

	const callers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			placement, err := f.engine.PlaceOrder(context.Background(), "Jane", []domain.OrderItem{line(a.ID, 1)})
			if err != nil || !placement.Success() {
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 10, succeeded)
	require.Equal(t, 0, f.stock(t, a.ID))
	require.Equal(t, 10, f.orderCount(t))
}

func TestPlaceOrder_CanceledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.PlaceOrder(ctx, "Jane", []domain.OrderItem{line("x", 1)})
	require.ErrorIs(t, err, context.Canceled)
}

func gatheredValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
