package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ожидает выполнения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted — заказ выполнен, учитывается в выручке.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён. Остатки при этом не возвращаются.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ProductID — слабая ссылка на товар, товар может быть удалён позже.
	ProductID string
	Quantity  int
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID           string
	CustomerName string
	Items        []OrderItem
	TotalAmount  decimal.Decimal
	Status       OrderStatus
	CreatedAt    time.Time
}

// OrderDraft — данные заказа до присвоения идентификатора и времени создания.
type OrderDraft struct {
	CustomerName string
	Items        []OrderItem
	TotalAmount  decimal.Decimal
	Status       OrderStatus
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

// ItemsTotal считает сумму позиций по переданному прайсу.
// Второе значение содержит позиции, для которых цены нет.
func ItemsTotal(items []OrderItem, priceOf func(productID string) (decimal.Decimal, bool)) (decimal.Decimal, []int) {
	total := decimal.Zero
	var missing []int
	for idx, item := range items {
		price, ok := priceOf(item.ProductID)
		if !ok {
			missing = append(missing, idx)
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total, missing
}
