package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded Store. Expired sessions are dropped lazily
// on access and by Sweep.
type MemoryStore[T any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]Session[T]
}

// NewMemoryStore returns a store whose sessions expire ttl after their last
// write. A zero ttl keeps sessions forever.
func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]Session[T]),
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *MemoryStore[T]) WithClock(now func() time.Time) *MemoryStore[T] {
	m.now = now
	return m
}

func (m *MemoryStore[T]) expired(s Session[T], now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) >= m.ttl
}

// Get returns the user's session or an Idle one.
func (m *MemoryStore[T]) Get(_ context.Context, userID int64) (Session[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return idle[T](), nil
	}
	if m.expired(s, m.now()) {
		delete(m.sessions, userID)
		return idle[T](), nil
	}
	return s, nil
}

// Set stores s and refreshes its timestamp.
func (m *MemoryStore[T]) Set(_ context.Context, userID int64, s Session[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
	return nil
}

// Clear removes the user's session.
func (m *MemoryStore[T]) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore[T]) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
