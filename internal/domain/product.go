package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LowStockThreshold — граница, ниже которой остаток считается низким.
const LowStockThreshold = 10

// Product описывает товар на складе.
type Product struct {
	ID            string
	Name          string          `validate:"required"`
	Price         decimal.Decimal `validate:"gt=0"`
	StockQuantity int             `validate:"gte=0"`
	IsAvailable   bool
}

// ProductInput — данные для создания товара (всё, кроме идентификатора).
type ProductInput struct {
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	IsAvailable   bool
}

// ProductPatch — частичное обновление товара. nil-поля не меняются.
type ProductPatch struct {
	Name          *string
	Price         *decimal.Decimal
	StockQuantity *int
	IsAvailable   *bool
}

// StockDelta описывает изменение остатка одного товара.
type StockDelta struct {
	ProductID string
	Delta     int
}

// Orderable сообщает, можно ли заказать qty единиц товара.
func (p Product) Orderable(qty int) bool {
	return p.IsAvailable && p.StockQuantity >= qty
}

// Apply применяет patch к копии товара и возвращает результат.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	if p.IsAvailable != nil {
		product.IsAvailable = *p.IsAvailable
	}
	return product
}

// Empty возвращает true, если patch ничего не меняет.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.StockQuantity == nil && p.IsAvailable == nil
}

// NewProduct собирает товар из входных данных.
func NewProduct(id string, in ProductInput) Product {
	return Product{
		ID:            id,
		Name:          strings.TrimSpace(in.Name),
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		IsAvailable:   in.IsAvailable,
	}
}
