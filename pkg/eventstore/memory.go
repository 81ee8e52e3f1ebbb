package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the process-local journal used when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byAgg  map[uuid.UUID][]Event
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byAgg: make(map[uuid.UUID][]Event),
		now:   time.Now,
	}
}

func (m *MemoryStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.byAgg[aggregateID]
	if len(existing) != expectedVersion {
		return ErrConcurrencyConflict
	}

	for i, event := range events {
		m.nextID++
		event.ID = m.nextID
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = m.now().UTC()
		existing = append(existing, event)
	}
	m.byAgg[aggregateID] = existing
	return nil
}

func (m *MemoryStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, event := range m.byAgg[aggregateID] {
		if event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			break
		}
		out = append(out, event)
	}
	return out, nil
}
