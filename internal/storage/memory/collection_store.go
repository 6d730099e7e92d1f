package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// emptyCollection — содержимое отсутствующей коллекции.
var emptyCollection = []byte("[]")

type collectionRecord struct {
	payload []byte
	version int64
}

// collectionStoreInMemory — in-memory реализация EntityStore для разработки и тестов.
type collectionStoreInMemory struct {
	mu          sync.RWMutex
	collections map[string]collectionRecord
}

// NewCollectionStore возвращает пустое in-memory хранилище коллекций.
func NewCollectionStore() domain.EntityStore {
	return &collectionStoreInMemory{
		collections: make(map[string]collectionRecord),
	}
}

// ReadCollection возвращает копию коллекции и её версию.
func (s *collectionStoreInMemory) ReadCollection(ctx context.Context, name string) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.collections[name]
	if !ok {
		return domain.Collection{Name: name, Payload: append([]byte(nil), emptyCollection...)}, nil
	}
	// Копия, чтобы вызывающий не мог изменить сохранённые байты.
	return domain.Collection{
		Name:    name,
		Payload: append([]byte(nil), record.payload...),
		Version: record.version,
	}, nil
}

// WriteCollection перезаписывает коллекцию, если версия совпала с ожидаемой.
func (s *collectionStoreInMemory) WriteCollection(ctx context.Context, name string, payload []byte, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.collections[name]
	if current.version != expectedVersion {
		return current.version, domain.ErrCollectionVersionConflict
	}

	next := collectionRecord{
		payload: append([]byte(nil), payload...),
		version: current.version + 1,
	}
	s.collections[name] = next
	return next.version, nil
}

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *collectionStoreInMemory) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ domain.EntityStore = (*collectionStoreInMemory)(nil)
