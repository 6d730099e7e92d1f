package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

const (
	insertTimelineEventSQL = `
		INSERT INTO timeline_events (order_id, type, status, previous_status, reason, occurred)
		VALUES ($1, $2, $3, $4, $5, $6)`
	selectTimelineEventsSQL = `
		SELECT type, status, previous_status, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id`
)

// TimelineRepository хранит историю заказов в таблице timeline_events.
type TimelineRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTimelineRepository создаёт PostgreSQL-журнал событий заказов.
func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = r.now()
	}

	_, err := r.db.ExecContext(ctx, insertTimelineEventSQL,
		event.OrderID, event.Type, string(event.Status), string(event.Previous), event.Reason, occurred)
	if err != nil {
		return fmt.Errorf("append %s for order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectTimelineEventsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline of order %s: %w", orderID, err)
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var (
			status, previous string
			event            = domain.TimelineEvent{OrderID: orderID}
		)
		if err := rows.Scan(&event.Type, &status, &previous, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Status = domain.OrderStatus(status)
		event.Previous = domain.OrderStatus(previous)
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
