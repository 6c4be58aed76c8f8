// Package cache holds short-lived computed views keyed by string.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// DeletePrefix removes every key starting with prefix and reports how
	// many were removed.
	DeletePrefix(prefix string) int

	// Size returns the current number of items in the cache
	Size() int
}

// TTLCache is a typed view over go-cache. Expired items are swept by the
// go-cache janitor every cleanupInterval.
type TTLCache[T any] struct {
	c *gocache.Cache
}

var _ Cache[int] = (*TTLCache[int])(nil)

func NewTTLCache[T any](ttl, cleanupInterval time.Duration) *TTLCache[T] {
	return &TTLCache[T]{c: gocache.New(ttl, cleanupInterval)}
}

func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := c.c.Get(key)
	if !ok {
		return zero, false
	}
	data, ok := v.(T)
	if !ok {
		return zero, false
	}
	return data, true
}

func (c *TTLCache[T]) Set(key string, data T) {
	c.c.SetDefault(key, data)
}

func (c *TTLCache[T]) Delete(key string) {
	c.c.Delete(key)
}

func (c *TTLCache[T]) DeletePrefix(prefix string) int {
	n := 0
	for k := range c.c.Items() {
		if strings.HasPrefix(k, prefix) {
			c.c.Delete(k)
			n++
		}
	}
	return n
}

// Size counts items including expired ones not yet swept.
func (c *TTLCache[T]) Size() int {
	return c.c.ItemCount()
}

// Flush drops everything.
func (c *TTLCache[T]) Flush() {
	c.c.Flush()
}

// Key joins parts with ':' so owner-scoped prefixes can be invalidated.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Nop never stores anything. It stands in when caching is disabled.
type Nop[T any] struct{}

func (Nop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}
func (Nop[T]) Set(string, T)           {}
func (Nop[T]) Delete(string)           {}
func (Nop[T]) DeletePrefix(string) int { return 0 }
func (Nop[T]) Size() int               { return 0 }
