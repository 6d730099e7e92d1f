package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

type outboxEntry struct {
	msg       domain.OutboxMessage
	status    domain.OutboxStatus
	attempts  int
	createdAt time.Time
}

// OutboxRepository — in-memory outbox. Сообщения выдаются в порядке Enqueue.
type OutboxRepository struct {
	mu      sync.RWMutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
	now     func() time.Time
}

// NewOutboxRepository создаёт пустой outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		byID: make(map[string]*outboxEntry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue ставит сообщение в очередь со статусом pending.
// Повторная постановка с тем же ID возвращает domain.ErrOutboxDuplicate.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	msg, err := msg.WithID()
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	msg.Payload = slices.Clone(msg.Payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[msg.ID]; exists {
		return domain.OutboxMessage{}, domain.ErrOutboxDuplicate
	}
	entry := &outboxEntry{msg: msg, status: domain.OutboxStatusPending, createdAt: r.now()}
	r.entries = append(r.entries, entry)
	r.byID[msg.ID] = entry
	return msg, nil
}

func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = domain.OutboxPullLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.OutboxMessage
	for _, entry := range r.entries {
		if len(result) == limit {
			break
		}
		if entry.status == domain.OutboxStatusPending {
			result = append(result, entry.msg)
		}
	}
	return result, nil
}

func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, entry := range r.entries {
		if entry.status != domain.OutboxStatusPending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = entry.createdAt
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(id string) error {
	return r.mark(id, domain.OutboxStatusSent)
}

func (r *OutboxRepository) MarkFailed(id string) error {
	return r.mark(id, domain.OutboxStatusFailed)
}

func (r *OutboxRepository) mark(id string, status domain.OutboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxMessageNotFound
	}
	entry.status = status
	entry.attempts++
	return nil
}

// AllPending возвращает все неотправленные сообщения.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	total := len(r.entries)
	r.mu.RUnlock()

	pending, _ := r.PullPending(total + 1)
	return pending
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
