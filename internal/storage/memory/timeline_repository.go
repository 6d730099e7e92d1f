package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// TimelineRepository — общий журнал событий всех заказов.
// List отбирает события заказа и упорядочивает их по времени, сохраняя порядок записи при равенстве.
type TimelineRepository struct {
	mu  sync.RWMutex
	log []domain.TimelineEvent
	now func() time.Time
}

// NewTimelineRepository создаёт пустой журнал.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{now: func() time.Time { return time.Now().UTC() }}
}

func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}

	r.mu.Lock()
	r.log = append(r.log, event)
	r.mu.Unlock()
	return nil
}

func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	var result []domain.TimelineEvent
	for _, event := range r.log {
		if event.OrderID == orderID {
			result = append(result, event)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(result, func(a, b domain.TimelineEvent) int {
		return a.Occurred.Compare(b.Occurred)
	})
	return result, nil
}

// Len — число событий в журнале.
func (r *TimelineRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
