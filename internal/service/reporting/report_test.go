package reporting

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/repository"
	"github.com/vladislavdragonenkov/stockroom/internal/storage/memory"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuild_Empty(t *testing.T) {
	report := Build(nil, nil)

	require.True(t, report.TotalRevenue.IsZero())
	require.True(t, report.AverageOrderValue.IsZero())
	require.Zero(t, report.TotalOrders)
	require.Empty(t, report.TopProducts)
}

func TestBuild_CountsCompletedOnly(t *testing.T) {
	products := []domain.Product{
		{ID: "a", Name: "Laptop", StockQuantity: 15},
		{ID: "b", Name: "Mouse", StockQuantity: 5},
		{ID: "c", Name: "Cable", StockQuantity: 0},
	}
	orders := []domain.Order{
		{ID: "1", Status: domain.OrderStatusCompleted, TotalAmount: money("100.10"),
			Items: []domain.OrderItem{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 2}}},
		{ID: "2", Status: domain.OrderStatusCompleted, TotalAmount: money("0.20"),
			Items: []domain.OrderItem{{ProductID: "b", Quantity: 3}, {ProductID: "gone", Quantity: 4}}},
		{ID: "3", Status: domain.OrderStatusPending, TotalAmount: money("999"),
			Items: []domain.OrderItem{{ProductID: "c", Quantity: 50}}},
		{ID: "4", Status: domain.OrderStatusCancelled, TotalAmount: money("5"),
			Items: []domain.OrderItem{{ProductID: "c", Quantity: 50}}},
	}

	report := Build(products, orders)

	require.Equal(t, "100.30", report.TotalRevenue.StringFixed(2))
	require.Equal(t, "50.15", report.AverageOrderValue.StringFixed(2))
	require.Equal(t, 4, report.TotalOrders)
	require.Equal(t, 2, report.CompletedOrders)
	require.Equal(t, 3, report.TotalProducts)
	require.Len(t, report.LowStock, 2)
	require.Len(t, report.OutOfStock, 1)
	require.Equal(t, "c", report.OutOfStock[0].ID)

	require.Equal(t, []ProductQuantity{
		{ProductID: "b", Name: "Mouse", Quantity: 5},
		{ProductID: "gone", Name: UnknownProduct, Quantity: 4},
		{ProductID: "a", Name: "Laptop", Quantity: 1},
	}, report.TopProducts)
}

func TestBuild_TopProductsLimit(t *testing.T) {
	var items []domain.OrderItem
	for i, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
		items = append(items, domain.OrderItem{ProductID: id, Quantity: i + 1})
	}
	report := Build(nil, []domain.Order{{Status: domain.OrderStatusCompleted, TotalAmount: money("1"), Items: items}})

	require.Len(t, report.TopProducts, topProductsLimit)
	require.Equal(t, "p7", report.TopProducts[0].ProductID)
	require.Equal(t, "p3", report.TopProducts[4].ProductID)
}

func TestService_Report(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCollectionStore()
	products := repository.NewProductRepository(store, nil)
	orders := repository.NewOrderRepository(store, nil)

	_, err := products.Create(ctx, domain.ProductInput{Name: "A", Price: money("1"), StockQuantity: 3, IsAvailable: true})
	require.NoError(t, err)
	_, err = orders.Create(ctx, domain.OrderDraft{
		CustomerName: "Jane",
		Items:        []domain.OrderItem{{ProductID: "x", Quantity: 1}},
		TotalAmount:  money("12.34"),
		Status:       domain.OrderStatusCompleted,
	})
	require.NoError(t, err)

	report, err := NewService(products, orders).Report(ctx)
	require.NoError(t, err)
	require.Equal(t, "12.34", report.TotalRevenue.StringFixed(2))
	require.Equal(t, 1, report.TotalProducts)
	require.Len(t, report.LowStock, 1)
}
