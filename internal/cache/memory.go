package cache

import (
	"context"
	"sync"
	"time"

	"PriceLens/internal/model"
)

type memoryEntry struct {
	bars    []model.Bar
	expires time.Time
}

// MemoryStore is an in-process Store with per-entry expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]model.Bar, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]model.Bar{}, e.bars...), true, nil
}

// Set stores a copy of bars. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, bars []model.Bar, ttl time.Duration) error {
	e := memoryEntry{bars: append([]model.Bar{}, bars...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
