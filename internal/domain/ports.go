package domain

import (
	"context"
	"time"
)

// Имена коллекций в хранилище сущностей.
const (
	CollectionProducts = "store_products"
	CollectionOrders   = "store_orders"
)

// Collection — снимок коллекции: JSON-массив записей и версия для CAS.
type Collection struct {
	Name    string
	Payload []byte
	Version int64
}

// EntityStore хранит коллекции целиком. Частичных обновлений и блокировок нет,
// единственный примитив согласованности — запись с ожидаемой версией.
type EntityStore interface {
	// ReadCollection возвращает коллекцию; отсутствующая коллекция — пустой массив с версией 0.
	ReadCollection(ctx context.Context, name string) (Collection, error)
	// WriteCollection перезаписывает коллекцию, если её версия равна expectedVersion.
	// Иначе возвращает ErrCollectionVersionConflict.
	WriteCollection(ctx context.Context, name string, payload []byte, expectedVersion int64) (int64, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// ListFilter задаёт поиск по спискам (подстрока без учёта регистра).
type ListFilter struct {
	Query string
}

// ProductRepository описывает CRUD над товарами.
type ProductRepository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, in ProductInput) (Product, error)
	Update(ctx context.Context, id string, patch ProductPatch) (Product, error)
	Delete(ctx context.Context, id string) (bool, error)
	// AdjustStock применяет все изменения одной записью; ни один остаток не уходит в минус.
	AdjustStock(ctx context.Context, deltas []StockDelta) ([]Product, error)
}

// OrderRepository описывает хранилище заказов. Заказы не удаляются.
type OrderRepository interface {
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Get(ctx context.Context, id string) (Order, error)
	// Create присваивает идентификатор и время создания.
	Create(ctx context.Context, draft OrderDraft) (Order, error)
	// UpdateStatus меняет только статус; остальные поля заказа неизменны.
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, responseCode int) error
	MarkFailed(key string, responseBody []byte, responseCode int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
