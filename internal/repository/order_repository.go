package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

type orderItemRecord struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// orderRecord — формат заказа в коллекции store_orders.
type orderRecord struct {
	ID           string            `json:"id"`
	CustomerName string            `json:"customer_name"`
	Items        []orderItemRecord `json:"items"`
	TotalAmount  json.Number       `json:"total_amount"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}

func toOrderRecord(o domain.Order) orderRecord {
	items := make([]orderItemRecord, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemRecord{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return orderRecord{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Items:        items,
		TotalAmount:  json.Number(o.TotalAmount.StringFixed(2)),
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt.UTC(),
	}
}

func (r orderRecord) toDomain() (domain.Order, error) {
	total, err := decimal.NewFromString(r.TotalAmount.String())
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: order %s total %q", domain.ErrCollectionCorrupted, r.ID, r.TotalAmount)
	}
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return domain.Order{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Items:        items,
		TotalAmount:  total,
		Status:       domain.OrderStatus(r.Status),
		CreatedAt:    r.CreatedAt,
	}, nil
}

// OrderRepository хранит заказы в коллекции store_orders.
type OrderRepository struct {
	items *collection[orderRecord]
	newID func() (string, error)
	now   func() time.Time
}

// NewOrderRepository создаёт репозиторий заказов поверх store.
func NewOrderRepository(store domain.EntityStore, logger *log.Entry) *OrderRepository {
	return &OrderRepository{
		items: newCollection[orderRecord](store, domain.CollectionOrders, logger),
		newID: newID,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List возвращает заказы в порядке создания, отфильтрованные по имени клиента.
func (r *OrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, error) {
	records, _, err := r.items.load(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	orders := make([]domain.Order, 0, len(records))
	for _, rec := range records {
		if query != "" && !strings.Contains(strings.ToLower(rec.CustomerName), query) {
			continue
		}
		order, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	records, _, err := r.items.load(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec.toDomain()
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// Create присваивает заказу id и created_at. Статус по умолчанию — pending.
func (r *OrderRepository) Create(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	id, err := r.newID()
	if err != nil {
		return domain.Order{}, fmt.Errorf("generate order id: %w", err)
	}

	status := draft.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	if !status.Valid() {
		return domain.Order{}, domain.ErrOrderStatusInvalid
	}

	order := domain.Order{
		ID:           id,
		CustomerName: strings.TrimSpace(draft.CustomerName),
		Items:        append([]domain.OrderItem(nil), draft.Items...),
		TotalAmount:  draft.TotalAmount.Round(2),
		Status:       status,
		CreatedAt:    r.now(),
	}

	err = r.items.mutate(ctx, func(records []orderRecord) ([]orderRecord, error) {
		return append(records, toOrderRecord(order)), nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// UpdateStatus меняет только статус заказа.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrOrderStatusInvalid
	}

	var updated domain.Order
	err := r.items.mutate(ctx, func(records []orderRecord) ([]orderRecord, error) {
		idx := -1
		for i := range records {
			if records[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, domain.ErrOrderNotFound
		}

		current, err := records[idx].toDomain()
		if err != nil {
			return nil, err
		}
		updated = current
		if current.Status == status {
			return nil, errNoChange
		}

		updated.Status = status
		next := append([]orderRecord(nil), records...)
		next[idx].Status = string(status)
		return next, nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
