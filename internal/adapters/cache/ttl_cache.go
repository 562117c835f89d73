package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const ttlCachePollInterval = 50 * time.Millisecond

type ttlCache[T any] struct {
	cache *ttlcache.Cache[string, entry[T]]
}

func (c *ttlCache[T]) getOrClaim(key string) hitResult[T] {
	item, existed := c.cache.GetOrSet(key, entry[T]{valid: false})

	return hitResult[T]{
		data:    item.Value().data,
		valid:   item.Value().valid,
		claimed: !existed,
	}
}

func (c *ttlCache[T]) set(key string, data T) {
	c.cache.Set(key, entry[T]{data: data, valid: true}, ttlcache.DefaultTTL)
}

func (c *ttlCache[T]) delete(key string) {
	c.cache.Delete(key)
}

func (c *ttlCache[T]) wait(ctx context.Context) error {
	select {
	case <-time.After(ttlCachePollInterval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewTTLCache returns a cache where entries expire ttl after being set.
// Claims expire too, so a crashed creator does not block a key forever.
func NewTTLCache[T any](ttl time.Duration) (Cache[T], func()) {
	cache := ttlcache.New[string, entry[T]](
		ttlcache.WithTTL[string, entry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, entry[T]](),
	)
	go cache.Start()
	return &ttlCache[T]{cache: cache}, cache.Stop
}
