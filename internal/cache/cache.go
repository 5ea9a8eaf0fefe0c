package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Clear drops every entry
	Clear()
}

// Ristretto is a TTL cache backed by ristretto. Every entry costs 1, so
// MaxItems bounds the number of entries.
type Ristretto[T any] struct {
	store *ristretto.Cache[string, T]
	ttl   time.Duration
}

func NewRistretto[T any](maxItems int64, ttl time.Duration) (*Ristretto[T], error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters: maxItems * 10, // keys tracked for admission
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Ristretto[T]{store: store, ttl: ttl}, nil
}

func (c *Ristretto[T]) Get(key string) (T, bool) {
	return c.store.Get(key)
}

// Set stores data. Writes are applied asynchronously; call Wait when the
// value must be readable immediately.
func (c *Ristretto[T]) Set(key string, data T) {
	if c.ttl > 0 {
		c.store.SetWithTTL(key, data, 1, c.ttl)
		return
	}
	c.store.Set(key, data, 1)
}

func (c *Ristretto[T]) Delete(key string) {
	c.store.Del(key)
}

func (c *Ristretto[T]) Clear() {
	c.store.Clear()
}

// Wait blocks until pending writes are applied.
func (c *Ristretto[T]) Wait() {
	c.store.Wait()
}

func (c *Ristretto[T]) Close() {
	c.store.Close()
}
