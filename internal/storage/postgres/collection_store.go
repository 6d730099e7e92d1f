package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

type collectionStore struct {
	store *Store
}

// NewCollectionStore возвращает EntityStore поверх таблицы collections.
// Каждая коллекция хранится одной JSONB-строкой с номером версии.
func NewCollectionStore(store *Store) domain.EntityStore {
	return &collectionStore{store: store}
}

func (s *collectionStore) ReadCollection(ctx context.Context, name string) (domain.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	collection := domain.Collection{Name: name}
	err := s.store.db.QueryRowContext(ctx, `
		SELECT payload, version
		FROM collections
		WHERE name = $1
	`, name).Scan(&collection.Payload, &collection.Version)
	if errors.Is(err, sql.ErrNoRows) {
		collection.Payload = []byte("[]")
		return collection, nil
	}
	if err != nil {
		return domain.Collection{}, fmt.Errorf("read collection %s: %w", name, err)
	}
	return collection, nil
}

// WriteCollection — условная запись. При expectedVersion=0 коллекция создаётся
// (ON CONFLICT DO NOTHING), иначе обновляется строка с совпавшей версией.
// Пустой RETURNING означает, что другой писатель успел раньше.
func (s *collectionStore) WriteCollection(ctx context.Context, name string, payload []byte, expectedVersion int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		UPDATE collections
		SET payload = $2::jsonb,
		    version = version + 1,
		    updated_at = NOW()
		WHERE name = $1 AND version = $3
		RETURNING version
	`
	if expectedVersion == 0 {
		query = `
			INSERT INTO collections (name, payload, version, updated_at)
			SELECT $1, $2::jsonb, 1, NOW()
			WHERE $3::bigint = 0
			ON CONFLICT (name) DO NOTHING
			RETURNING version
		`
	}

	var version int64
	err := s.store.db.QueryRowContext(ctx, query, name, string(payload), expectedVersion).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, domain.ErrCollectionVersionConflict
	case err != nil:
		return 0, fmt.Errorf("write collection %s: %w", name, err)
	}
	return version, nil
}

func (s *collectionStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

var _ domain.EntityStore = (*collectionStore)(nil)
