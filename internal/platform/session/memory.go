package session

import (
	"context"
	"sync"
	"time"
)

type memItem struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore returns a store whose entries expire after ttl; zero means never.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memItem), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string, dest any) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if ok && s.expired(item) {
		delete(s.items, id)
		ok = false
	}
	if ok && s.ttl > 0 {
		item.expires = s.now().Add(s.ttl)
		s.items[id] = item
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return decode(item.data, dest)
}

func (s *MemoryStore) Set(_ context.Context, id string, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memItem{data: b}
	if s.ttl > 0 {
		item.expires = s.now().Add(s.ttl)
	}
	s.items[id] = item
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) expired(item memItem) bool {
	return !item.expires.IsZero() && s.now().After(item.expires)
}
