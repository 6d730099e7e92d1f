// Package repository реализует репозитории товаров и заказов поверх EntityStore.
// Каждая мутация — это чтение всей коллекции, чистое изменение среза и запись с CAS по версии.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

const (
	defaultWriteAttempts = 3
	defaultRetryDelay    = 10 * time.Millisecond
)

// errNoChange сигнализирует mutate, что запись не нужна.
var errNoChange = errors.New("no change")

// collection кодирует записи типа R в JSON-массив и обратно.
type collection[R any] struct {
	store      domain.EntityStore
	name       string
	attempts   int
	retryDelay time.Duration
	logger     *log.Entry
}

func newCollection[R any](store domain.EntityStore, name string, logger *log.Entry) *collection[R] {
	if logger == nil {
		logger = log.New().WithField("component", "repository")
	}
	return &collection[R]{
		store:      store,
		name:       name,
		attempts:   defaultWriteAttempts,
		retryDelay: defaultRetryDelay,
		logger:     logger.WithField("collection", name),
	}
}

func (c *collection[R]) load(ctx context.Context) ([]R, int64, error) {
	snapshot, err := c.store.ReadCollection(ctx, c.name)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", c.name, err)
	}

	var records []R
	if len(snapshot.Payload) > 0 {
		if err := json.Unmarshal(snapshot.Payload, &records); err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", domain.ErrCollectionCorrupted, c.name, err)
		}
	}
	return records, snapshot.Version, nil
}

// mutate выполняет цикл read-modify-write. fn получает свежий срез и возвращает новый.
// Ошибка fn прерывает цикл без записи; конфликт версий повторяется с новым чтением.
func (c *collection[R]) mutate(ctx context.Context, fn func([]R) ([]R, error)) error {
	for attempt := 0; attempt < c.attempts; attempt++ {
		records, version, err := c.load(ctx)
		if err != nil {
			return err
		}

		next, err := fn(records)
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err != nil {
			return err
		}
		if next == nil {
			next = []R{}
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}

		_, err = c.store.WriteCollection(ctx, c.name, payload, version)
		if err == nil {
			return nil
		}
		if !domain.IsVersionConflict(err) {
			return fmt.Errorf("write %s: %w", c.name, err)
		}

		c.logger.WithFields(log.Fields{
			"attempt": attempt + 1,
			"version": version,
		}).Warn("version conflict detected, retrying")

		if attempt == c.attempts-1 {
			break
		}
		delay := c.retryDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("write %s after %d attempts: %w", c.name, c.attempts, domain.ErrCollectionVersionConflict)
}
