// Package reporting считает сводку по выручке и остаткам. Только чтение.
package reporting

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

const topProductsLimit = 5

// UnknownProduct подставляется вместо имени удалённого товара.
const UnknownProduct = "Unknown"

// ProductQuantity — товар и суммарное количество в выполненных заказах.
type ProductQuantity struct {
	ProductID string
	Name      string
	Quantity  int
}

// Report — сводка для дашборда.
type Report struct {
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	TotalOrders       int
	CompletedOrders   int
	TotalProducts     int
	LowStock          []domain.Product
	OutOfStock        []domain.Product
	TopProducts       []ProductQuantity
}

// Build считает отчёт. Выручка и топ товаров учитывают только completed заказы.
func Build(products []domain.Product, orders []domain.Order) Report {
	report := Report{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		TotalOrders:       len(orders),
		TotalProducts:     len(products),
	}

	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
		if p.StockQuantity < domain.LowStockThreshold {
			report.LowStock = append(report.LowStock, p)
		}
		if p.StockQuantity == 0 {
			report.OutOfStock = append(report.OutOfStock, p)
		}
	}

	quantities := make(map[string]int)
	var seen []string
	for _, o := range orders {
		if o.Status != domain.OrderStatusCompleted {
			continue
		}
		report.CompletedOrders++
		report.TotalRevenue = report.TotalRevenue.Add(o.TotalAmount)
		for _, item := range o.Items {
			if _, ok := quantities[item.ProductID]; !ok {
				seen = append(seen, item.ProductID)
			}
			quantities[item.ProductID] += item.Quantity
		}
	}

	if report.CompletedOrders > 0 {
		report.AverageOrderValue = report.TotalRevenue.
			DivRound(decimal.NewFromInt(int64(report.CompletedOrders)), 2)
	}

	top := make([]ProductQuantity, 0, len(seen))
	for _, id := range seen {
		name, ok := names[id]
		if !ok {
			name = UnknownProduct
		}
		top = append(top, ProductQuantity{ProductID: id, Name: name, Quantity: quantities[id]})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Quantity > top[j].Quantity })
	if len(top) > topProductsLimit {
		top = top[:topProductsLimit]
	}
	report.TopProducts = top

	return report
}

// Service строит отчёт по текущему состоянию репозиториев.
type Service struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
}

// NewService создаёт сервис отчётов.
func NewService(products domain.ProductRepository, orders domain.OrderRepository) *Service {
	return &Service{products: products, orders: orders}
}

func (s *Service) Report(ctx context.Context) (Report, error) {
	products, err := s.products.List(ctx, domain.ListFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("list products: %w", err)
	}
	orders, err := s.orders.List(ctx, domain.ListFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("list orders: %w", err)
	}
	return Build(products, orders), nil
}
