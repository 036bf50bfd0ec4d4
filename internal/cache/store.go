package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a key on a cache miss.
type Loader[V any] func(ctx context.Context) (V, error)

// Store is a read-through cache without invalidation. Concurrent loads of one key
// collapse into a single call; the first successful value is kept for the life of the store.
// Failed loads are not cached.
type Store[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
	group  singleflight.Group
}

// NewStore creates an empty Store.
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{values: make(map[K]V)}
}

// Get returns the cached value for key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetOrLoad returns the cached value for key, calling load on a miss.
func (s *Store[K, V]) GetOrLoad(ctx context.Context, key K, load Loader[V]) (V, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	res, err, _ := s.group.Do(fmt.Sprint(key), func() (any, error) {
		if v, ok := s.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.values[key]; ok {
			return existing, nil
		}
		s.values[key] = v
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Len returns the number of cached entries.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
