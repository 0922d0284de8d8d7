package kaleido

import "sync"

// Cache is an explicit memo cache keyed by request shape. Services that list
// slowly-changing resources (entity fields, activity definitions) consult it
// and invalidate the affected key on every write operation, so there is no
// hidden process-lifetime staleness.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]T
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// GetOrFill returns the cached value for key, calling fill to populate it on a
// miss. A fill error is returned without caching anything.
func (c *Cache[T]) GetOrFill(key string, fill func() (T, error)) (T, error) {
	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	value, err := fill()
	if err != nil {
		return value, err
	}

	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops the cached value for key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every cached value.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]T)
	c.mu.Unlock()
}
