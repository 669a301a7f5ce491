package repository

import (
	"context"
	"sync"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// MemoryStore keeps the collection in process memory.  It backs the demo
// mode and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items []model.Reservation
}

// NewMemoryStore returns a store seeded with a copy of items.
func NewMemoryStore(items ...model.Reservation) *MemoryStore {
	return &MemoryStore{items: cloneAll(items)}
}

func (m *MemoryStore) Load(ctx context.Context) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.items), nil
}

func (m *MemoryStore) Save(ctx context.Context, items []model.Reservation) error {
	if err := checkUnique(items); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = cloneAll(items)
	return nil
}

func cloneAll(items []model.Reservation) []model.Reservation {
	out := make([]model.Reservation, len(items))
	for i, r := range items {
		out[i] = r.Clone()
	}
	return out
}

func checkUnique(items []model.Reservation) error {
	seen := make(map[string]struct{}, len(items))
	for _, r := range items {
		if _, ok := seen[r.ID]; ok {
			return ErrDuplicateID
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
