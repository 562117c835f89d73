package cache

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	data  T
	valid bool
}

type basicCache[T any] struct {
	entries map[string]entry[T]
	changed chan struct{}
	lock    sync.Mutex
}

func (c *basicCache[T]) getOrClaim(key string) hitResult[T] {
	c.lock.Lock()
	defer c.lock.Unlock()

	existing, ok := c.entries[key]
	if ok {
		return hitResult[T]{
			data:  existing.data,
			valid: existing.valid,
		}
	}

	c.entries[key] = entry[T]{valid: false}
	return hitResult[T]{claimed: true}
}

func (c *basicCache[T]) set(key string, data T) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.entries[key] = entry[T]{data: data, valid: true}
	c.notify()
}

func (c *basicCache[T]) delete(key string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.entries, key)
	c.notify()
}

// notify wakes every waiter. Must be called with the lock held.
func (c *basicCache[T]) notify() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *basicCache[T]) wait(ctx context.Context) error {
	c.lock.Lock()
	changed := c.changed
	c.lock.Unlock()

	// A change may land between getOrClaim and here, so never wait longer than a poll interval
	select {
	case <-changed:
		return nil
	case <-time.After(ttlCachePollInterval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewBasicCache returns an unbounded cache without expiry
func NewBasicCache[T any]() Cache[T] {
	return &basicCache[T]{
		entries: make(map[string]entry[T]),
		changed: make(chan struct{}),
	}
}
