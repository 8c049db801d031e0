package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps orders in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[int64][]Order
	now    func() time.Time
}

// NewMemoryStore returns an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[int64][]Order), now: time.Now}
}

func (m *MemoryStore) Append(_ context.Context, o Order) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Index = len(m.orders[o.UserID])
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.now().UTC()
	}
	m.orders[o.UserID] = append(m.orders[o.UserID], o)
	return o, nil
}

func (m *MemoryStore) List(_ context.Context, userID int64) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Order(nil), m.orders[userID]...), nil
}

func (m *MemoryStore) Get(_ context.Context, userID int64, index int) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.orders[userID]
	if index < 0 || index >= len(list) {
		return Order{}, ErrNotFound
	}
	return list[index], nil
}

func (m *MemoryStore) Transition(_ context.Context, userID int64, index int, to Status) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.orders[userID]
	if index < 0 || index >= len(list) {
		return Order{}, ErrNotFound
	}
	o := list[index]
	if !CanTransition(o.Status, to) {
		return o, &FinalError{Current: o.Status}
	}
	o.Status = to
	list[index] = o
	return o, nil
}
