package lifecycle

import (
	"sync"
	"time"
)

// ─────────────────────────── in-memory store (fallback) ───────────────────────────

// memStore — хранилище в памяти для режима без БД и для тестов.
type memStore struct {
	mu   sync.RWMutex
	byID map[string]Assignment
}

func NewMemStore() *memStore {
	return &memStore{byID: make(map[string]Assignment)}
}

func (m *memStore) Get(subscriberID string) (Assignment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[subscriberID]
	return a, ok, nil
}

func (m *memStore) Create(a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.SubscriberID]; ok {
		return ErrExists
	}
	a.UpdatedAt = time.Now()
	m.byID[a.SubscriberID] = a
	return nil
}

func (m *memStore) CompareAndSwap(subscriberID string, expected State, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[subscriberID]
	if !ok {
		return ErrNotFound
	}
	if cur.State != expected {
		return ErrConflict
	}
	m.byID[subscriberID] = a
	return nil
}
