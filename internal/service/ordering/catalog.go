package ordering

import (
	"context"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// Catalog — ProductRepository, изменения которого идут под тем же Lock, что и
// оформление заказов. Пока заказ оформляется, товар нельзя изменить или удалить.
// Движку передаётся исходный репозиторий: Lock не реентерабелен.
type Catalog struct {
	domain.ProductRepository
	lock *Lock
}

var _ domain.ProductRepository = (*Catalog)(nil)

// NewCatalog оборачивает products общим lock.
func NewCatalog(products domain.ProductRepository, lock *Lock) *Catalog {
	if lock == nil {
		lock = NewLock()
	}
	return &Catalog{ProductRepository: products, lock: lock}
}

func (c *Catalog) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ProductRepository.Create(ctx, in)
}

func (c *Catalog) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ProductRepository.Update(ctx, id, patch)
}

func (c *Catalog) Delete(ctx context.Context, id string) (bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ProductRepository.Delete(ctx, id)
}

func (c *Catalog) AdjustStock(ctx context.Context, deltas []domain.StockDelta) ([]domain.Product, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ProductRepository.AdjustStock(ctx, deltas)
}
