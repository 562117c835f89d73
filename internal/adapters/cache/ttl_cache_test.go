package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	t.Parallel()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		cache, stop := NewTTLCache[int](time.Hour)
		t.Cleanup(stop)

		cache.set("a", 1)
		result := cache.getOrClaim("a")
		require.False(t, result.claimed)
		require.True(t, result.valid)
		require.Equal(t, 1, result.data)
	})

	t.Run("getOrClaim claims when missing", func(t *testing.T) {
		t.Parallel()

		cache, stop := NewTTLCache[int](time.Hour)
		t.Cleanup(stop)

		result := cache.getOrClaim("a")
		require.True(t, result.claimed)

		result = cache.getOrClaim("a")
		require.False(t, result.claimed)
		require.False(t, result.valid)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		cache, stop := NewTTLCache[int](time.Hour)
		t.Cleanup(stop)

		cache.set("a", 1)
		cache.delete("a")
		require.True(t, cache.getOrClaim("a").claimed)
	})

	t.Run("entries expire", func(t *testing.T) {
		t.Parallel()

		cache, stop := NewTTLCache[int](10 * time.Millisecond)
		t.Cleanup(stop)

		cache.set("a", 1)
		require.Eventually(t, func() bool {
			result := cache.getOrClaim("a")
			if !result.claimed {
				return false
			}
			cache.delete("a")
			return true
		}, time.Second, 5*time.Millisecond)
	})
}
