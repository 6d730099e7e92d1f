package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// productRecord — формат товара в коллекции store_products.
type productRecord struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Price         json.Number `json:"price"`
	StockQuantity int         `json:"stock_quantity"`
	IsAvailable   bool        `json:"is_available"`
}

func toProductRecord(p domain.Product) productRecord {
	return productRecord{
		ID:            p.ID,
		Name:          p.Name,
		Price:         json.Number(p.Price.StringFixed(2)),
		StockQuantity: p.StockQuantity,
		IsAvailable:   p.IsAvailable,
	}
}

func (r productRecord) toDomain() (domain.Product, error) {
	price, err := decimal.NewFromString(r.Price.String())
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: product %s price %q", domain.ErrCollectionCorrupted, r.ID, r.Price)
	}
	return domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		Price:         price,
		StockQuantity: r.StockQuantity,
		IsAvailable:   r.IsAvailable,
	}, nil
}

// Сообщения формы товара.
var productFieldMessages = map[string]string{
	"Name":          "Name cannot be empty",
	"Price":         "Price must be greater than 0",
	"StockQuantity": "Stock quantity cannot be negative",
}

// ProductRepository хранит товары в коллекции store_products.
type ProductRepository struct {
	items    *collection[productRecord]
	validate *validator.Validate
	newID    func() (string, error)
}

// NewProductRepository создаёт репозиторий товаров поверх store.
func NewProductRepository(store domain.EntityStore, logger *log.Entry) *ProductRepository {
	return &ProductRepository{
		items:    newCollection[productRecord](store, domain.CollectionProducts, logger),
		validate: newProductValidator(),
		newID:    newID,
	}
}

func newProductValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// List возвращает товары в порядке добавления, отфильтрованные по имени.
func (r *ProductRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, error) {
	records, _, err := r.items.load(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	products := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		if query != "" && !strings.Contains(strings.ToLower(rec.Name), query) {
			continue
		}
		product, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	records, _, err := r.items.load(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec.toDomain()
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

// Create проверяет данные, присваивает идентификатор и добавляет товар в конец коллекции.
func (r *ProductRepository) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	id, err := r.newID()
	if err != nil {
		return domain.Product{}, fmt.Errorf("generate product id: %w", err)
	}

	product := domain.NewProduct(id, in)
	product.Price = product.Price.Round(2)
	if err := r.check(product); err != nil {
		return domain.Product{}, err
	}

	err = r.items.mutate(ctx, func(records []productRecord) ([]productRecord, error) {
		return append(records, toProductRecord(product)), nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Update сливает patch с текущей записью. Отсутствующий id — ErrProductNotFound.
func (r *ProductRepository) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := r.items.mutate(ctx, func(records []productRecord) ([]productRecord, error) {
		idx := indexOfProduct(records, id)
		if idx < 0 {
			return nil, domain.ErrProductNotFound
		}
		current, err := records[idx].toDomain()
		if err != nil {
			return nil, err
		}

		updated = patch.Apply(current)
		updated.Price = updated.Price.Round(2)
		if err := r.check(updated); err != nil {
			return nil, err
		}
		if patch.Empty() {
			return nil, errNoChange
		}

		next := append([]productRecord(nil), records...)
		next[idx] = toProductRecord(updated)
		return next, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// Delete удаляет товар и сообщает, была ли запись. Заказы со ссылкой на товар не трогаются.
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	removed := false
	err := r.items.mutate(ctx, func(records []productRecord) ([]productRecord, error) {
		idx := indexOfProduct(records, id)
		if idx < 0 {
			return nil, errNoChange
		}
		removed = true
		next := make([]productRecord, 0, len(records)-1)
		next = append(next, records[:idx]...)
		return append(next, records[idx+1:]...), nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// AdjustStock применяет изменения остатков одной записью коллекции.
// Повторяющиеся id складываются. Если товар не найден или остаток ушёл бы в минус,
// ничего не записывается.
func (r *ProductRepository) AdjustStock(ctx context.Context, deltas []domain.StockDelta) ([]domain.Product, error) {
	if len(deltas) == 0 {
		return nil, nil
	}

	var touched []domain.Product
	err := r.items.mutate(ctx, func(records []productRecord) ([]productRecord, error) {
		next := append([]productRecord(nil), records...)
		order := make([]int, 0, len(deltas))
		seen := make(map[int]bool, len(deltas))

		for _, delta := range deltas {
			idx := indexOfProduct(next, delta.ProductID)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, delta.ProductID)
			}
			stock := next[idx].StockQuantity + delta.Delta
			if stock < 0 {
				return nil, fmt.Errorf("%w: product %s has %d, delta %d",
					domain.ErrNegativeStock, delta.ProductID, next[idx].StockQuantity, delta.Delta)
			}
			next[idx].StockQuantity = stock
			if !seen[idx] {
				seen[idx] = true
				order = append(order, idx)
			}
		}

		touched = touched[:0]
		for _, idx := range order {
			product, err := next[idx].toDomain()
			if err != nil {
				return nil, err
			}
			touched = append(touched, product)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

func (r *ProductRepository) check(p domain.Product) error {
	err := r.validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrProductInvalid, err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := productFieldMessages[fe.Field()]
		if !ok {
			msg = fe.Error()
		}
		messages = append(messages, msg)
	}
	return fmt.Errorf("%w: %s", domain.ErrProductInvalid, strings.Join(messages, "; "))
}

func indexOfProduct(records []productRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
