package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибки валидации заказа.
	ErrCustomerRequired   = errors.New("customer_name is required")
	ErrItemsRequired      = errors.New("order must contain at least one item")
	ErrProductRequired    = errors.New("product_id is required")
	ErrItemQtyInvalid     = errors.New("item quantity must be greater than zero")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("not enough stock")

	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductInvalid — данные товара не прошли проверку.
	ErrProductInvalid = errors.New("invalid product")
	// ErrNegativeStock — изменение остатка увело бы его ниже нуля.
	ErrNegativeStock = errors.New("stock quantity cannot be negative")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderStatusInvalid — статус не входит в pending|completed|cancelled.
	ErrOrderStatusInvalid = errors.New("invalid order status")
	// ErrOrderRejected — заказ не прошёл валидацию, состояние не менялось.
	ErrOrderRejected = errors.New("order rejected")
	// ErrStockDecrementFailed — заказ сохранён, но списать остатки не удалось.
	ErrStockDecrementFailed = errors.New("stock decrement failed")

	// ErrCollectionVersionConflict — коллекцию успел перезаписать другой писатель.
	ErrCollectionVersionConflict = errors.New("collection version conflict")
	// ErrCollectionCorrupted — сохранённые данные коллекции не декодируются.
	ErrCollectionCorrupted = errors.New("collection payload is corrupted")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxMessageNotFound — отметка о доставке пришла для неизвестного сообщения.
	ErrOutboxMessageNotFound = fmt.Errorf("%w: message not found", ErrOutboxPublish)
	// ErrOutboxDuplicate — сообщение с таким id уже поставлено в очередь.
	ErrOutboxDuplicate = errors.New("outbox message already enqueued")

	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий коллекции.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrCollectionVersionConflict)
}

// IsIdempotencyConflict сообщает, что ключ уже занят (тем же или другим запросом).
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsNotFound объединяет ошибки отсутствия сущностей.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrProductNotFound)
}
