package cache

import "context"

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
}

// Cache is a keyed memo where the first caller for a key claims it and fills it in.
// Other callers for the same key wait until the entry is set or released.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
	wait(ctx context.Context) error
}
