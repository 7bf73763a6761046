package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps entities in a mutex-guarded map. Items are deep-copied
// on the way in and out so concurrent readers only ever observe persisted
// states.
type MemoryStore[T Entity] struct {
	mu           sync.RWMutex
	items        map[string]T
	defaultLimit int
	closed       bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore[T Entity](defaultLimit int) *MemoryStore[T] {
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	return &MemoryStore[T]{
		items:        make(map[string]T),
		defaultLimit: defaultLimit,
	}
}

// Get returns the item and whether it exists
func (s *MemoryStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return zero, false, ErrClosed
	}

	item, ok := s.items[id]
	if !ok {
		return zero, false, nil
	}

	out, err := clone(item)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// Create assigns a fresh UUID and stores a copy of the item
func (s *MemoryStore[T]) Create(ctx context.Context, item T) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	item.SetUUID(id)

	stored, err := clone(item)
	if err != nil {
		return "", err
	}
	s.items[id] = stored

	return id, nil
}

// Update overwrites an existing item; false when absent
func (s *MemoryStore[T]) Update(ctx context.Context, id string, item T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if _, ok := s.items[id]; !ok {
		return false, nil
	}

	item.SetUUID(id)
	stored, err := clone(item)
	if err != nil {
		return false, err
	}
	s.items[id] = stored

	return true, nil
}

// Delete removes an item; false when absent
func (s *MemoryStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)

	return true, nil
}

// ListAll returns copies of every stored item
func (s *MemoryStore[T]) ListAll(ctx context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		copied, err := clone(item)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}

	return out, nil
}

// ListPage pages through items ordered ascending by uuid
func (s *MemoryStore[T]) ListPage(ctx context.Context, limit int, cursor string) ([]T, string, error) {
	if limit < 1 {
		limit = s.defaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, "", ErrClosed
	}

	sorted := make([]T, 0, len(s.items))
	for _, item := range s.items {
		sorted = append(sorted, item)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GetUUID() < sorted[j].GetUUID()
	})

	page, next := pageOf(sorted, limit, cursor)

	out := make([]T, 0, len(page))
	for _, item := range page {
		copied, err := clone(item)
		if err != nil {
			return nil, "", err
		}
		out = append(out, copied)
	}

	return out, next, nil
}

// Close drops all items; further use returns ErrClosed
func (s *MemoryStore[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.closed = true
	return nil
}
