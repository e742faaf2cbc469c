package state

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[T any] struct {
	value   T
	touched time.Time
}

// MemoryStore keeps sessions in process memory. With a TTL, entries idle
// for longer than TTL read as absent and are dropped on the next access.
type MemoryStore[T any] struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry[T]
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory Store. ttl <= 0 keeps entries forever.
func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		sessions: make(map[string]memoryEntry[T]),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore[T]) expired(e memoryEntry[T]) bool {
	return m.ttl > 0 && m.now().Sub(e.touched) > m.ttl
}

// Load returns the stored value or ErrNotFound.
func (m *MemoryStore[T]) Load(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok && !m.expired(e) {
		return e.value, nil
	}
	if ok {
		m.mu.Lock()
		if cur, still := m.sessions[id]; still && m.expired(cur) {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
	}
	var zero T
	return zero, ErrNotFound
}

// Save stores v and refreshes its TTL.
func (m *MemoryStore[T]) Save(_ context.Context, id string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = memoryEntry[T]{value: v, touched: m.now()}
	return nil
}

// Delete removes the session; unknown ids are not an error.
func (m *MemoryStore[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (m *MemoryStore[T]) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len reports how many entries are held, expired ones included.
func (m *MemoryStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
