package cache

import (
	"context"
	"fmt"

	"github.com/Amund211/catalogcache/internal/logging"
)

// GetOrCreate returns the cached value for key, calling create if no one else is.
// Returns data, created, error
func GetOrCreate[T any](ctx context.Context, cache Cache[T], key string, create func() (T, error)) (T, bool, error) {
	var empty T

	// Release a claimed entry that never got set so other callers can try again
	claimed := false
	set := false
	defer func() {
		if claimed && !set {
			cache.delete(key)
		}
	}()

	for {
		result := cache.getOrClaim(key)

		if result.claimed {
			claimed = true

			logging.FromContext(ctx).InfoContext(ctx, "Getting cache entry", "key", key, "cache", "miss")

			data, err := create()
			if err != nil {
				return empty, false, fmt.Errorf("failed to create cache entry: %w", err)
			}

			cache.set(key, data)
			set = true

			return data, true, nil
		}

		if result.valid {
			logging.FromContext(ctx).InfoContext(ctx, "Getting cache entry", "key", key, "cache", "hit")
			return result.data, false, nil
		}

		logging.FromContext(ctx).InfoContext(ctx, "Waiting for cache", "key", key)
		if err := cache.wait(ctx); err != nil {
			return empty, false, fmt.Errorf("stopped waiting for cache entry: %w", err)
		}
	}
}
