package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/flexprice/plansync/internal/errors"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(item T) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// snapshotter is implemented by stores whose contents the mock transaction
// manager restores when a transaction fails
type snapshotter interface {
	snapshot() any
	restore(state any)
}

// InMemoryStore implements a generic in-memory store.
// Items are copied on the way in and out so callers never share memory with the store.
type InMemoryStore[T any] struct {
	mu     sync.RWMutex
	items  map[string]T
	copyFn func(T) T
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any](copyFn func(T) T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items:  make(map[string]T),
		copyFn: copyFn,
	}
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(_ context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").
			WithHintf("Item %s already exists", id).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = s.copyFn(item)
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return s.copyFn(item), nil
	}

	var zero T
	return zero, ierr.NewError("item not found").
		WithHintf("Item %s was not found", id).
		Mark(ierr.ErrNotFound)
}

// Find returns the first item accepted by filterFn
func (s *InMemoryStore[T]) Find(_ context.Context, filterFn FilterFunc[T]) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if filterFn(item) {
			return s.copyFn(item), true
		}
	}
	var zero T
	return zero, false
}

// List retrieves items accepted by filterFn, ordered by sortFn
func (s *InMemoryStore[T]) List(_ context.Context, filterFn FilterFunc[T], sortFn SortFunc[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(item) {
			result = append(result, s.copyFn(item))
		}
	}

	if sortFn != nil {
		sort.Slice(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}
	return result
}

// Update updates an existing item
func (s *InMemoryStore[T]) Update(_ context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ierr.NewError("item not found").
			WithHintf("Item %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	s.items[id] = s.copyFn(item)
	return nil
}

// Atomic runs fn with exclusive access to the raw item map, for multi-step
// mutations that must not be observed half done
func (s *InMemoryStore[T]) Atomic(fn func(items map[string]T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.items)
}

// Count returns the number of stored items
func (s *InMemoryStore[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

func (s *InMemoryStore[T]) snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make(map[string]T, len(s.items))
	for id, item := range s.items {
		copied[id] = s.copyFn(item)
	}
	return copied
}

func (s *InMemoryStore[T]) restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = state.(map[string]T)
}
