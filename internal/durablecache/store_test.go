package durablecache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/catalogcache/internal/adapters/kvstore"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/stretchr/testify/require"
)

type payload struct {
	A int `json:"a"`
}

type mockedClock struct {
	now  time.Time
	lock sync.Mutex
}

func newMockedClock() *mockedClock {
	return &mockedClock{now: time.Date(2024, time.March, 12, 12, 0, 0, 0, time.UTC)}
}

func (c *mockedClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *mockedClock) advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type failingKV struct {
	*kvstore.Memory
	failGet  bool
	failSet  bool
	failKeys bool
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errors.New("read failed")
	}
	return f.Memory.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *failingKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	if f.failKeys {
		return nil, errors.New("scan failed")
	}
	return f.Memory.Keys(ctx, prefix)
}

func requireStored(t *testing.T, kv *kvstore.Memory, storageKey string, expected bool) {
	t.Helper()
	_, ok, err := kv.Get(t.Context(), storageKey)
	require.NoError(t, err)
	require.Equal(t, expected, ok)
}

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("set then get returns the value", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		clock := newMockedClock()
		store := durablecache.New(kvstore.NewMemory(), durablecache.WithNowFunc(clock.Now))

		store.Set(ctx, "x", payload{A: 1}, 1000*time.Millisecond)

		value, ok := durablecache.Get[payload](ctx, store, "x")
		require.True(t, ok)
		require.Equal(t, payload{A: 1}, value)
		require.True(t, store.Has(ctx, "x"))
	})

	t.Run("entries expire after their ttl and are purged", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		clock := newMockedClock()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv, durablecache.WithNowFunc(clock.Now))

		store.Set(ctx, "x", payload{A: 1}, 1000*time.Millisecond)

		clock.advance(1000 * time.Millisecond)
		_, ok := durablecache.Get[payload](ctx, store, "x")
		require.True(t, ok, "entry is valid up to and including its ttl")

		clock.advance(100 * time.Millisecond)
		_, ok = durablecache.Get[payload](ctx, store, "x")
		require.False(t, ok)
		requireStored(t, kv, "catalogcache_x", false)

		// Repeated reads are idempotent
		_, ok = durablecache.Get[payload](ctx, store, "x")
		require.False(t, ok)
		require.False(t, store.Has(ctx, "x"))
	})

	t.Run("version bump invalidates old entries", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		kv := kvstore.NewMemory()
		oldStore := durablecache.New(kv, durablecache.WithVersion("1.0.0"))
		oldStore.Set(ctx, "x", payload{A: 1}, time.Hour)
		requireStored(t, kv, "catalogcache_x", true)

		newStore := durablecache.New(kv, durablecache.WithVersion("1.0.1"))
		_, ok := durablecache.Get[payload](ctx, newStore, "x")
		require.False(t, ok)
		requireStored(t, kv, "catalogcache_x", false)
	})

	t.Run("corrupt entries are purged", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv)

		require.NoError(t, kv.Set(ctx, "catalogcache_garbage", []byte("{not json")))
		_, ok := durablecache.Get[payload](ctx, store, "garbage")
		require.False(t, ok)
		requireStored(t, kv, "catalogcache_garbage", false)
	})

	t.Run("entries with data of the wrong shape are purged", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv)

		store.Set(ctx, "x", "a string", time.Hour)
		_, ok := durablecache.Get[payload](ctx, store, "x")
		require.False(t, ok)
		requireStored(t, kv, "catalogcache_x", false)
	})

	t.Run("set overwrites unconditionally", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		store := durablecache.New(kvstore.NewMemory())

		store.Set(ctx, "x", payload{A: 1}, time.Hour)
		store.Set(ctx, "x", payload{A: 2}, time.Hour)

		value, ok := durablecache.Get[payload](ctx, store, "x")
		require.True(t, ok)
		require.Equal(t, 2, value.A)
	})

	t.Run("entries are stored in the documented layout", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		clock := newMockedClock()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv, durablecache.WithPrefix("app"), durablecache.WithVersion("3.1.4"), durablecache.WithNowFunc(clock.Now))

		store.Set(ctx, "dashboard", payload{A: 7}, 30*time.Minute)

		raw, ok, err := kv.Get(ctx, "app_dashboard")
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, `{"data":{"a":7},"timestamp":1710244800000,"ttl":1800000,"version":"3.1.4"}`, string(raw))
	})

	t.Run("delete and clear are idempotent", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv)
		require.NoError(t, kv.Set(ctx, "unrelated", []byte("keep me")))

		store.Set(ctx, "a", 1, time.Hour)
		store.Set(ctx, "b", 2, time.Hour)

		store.Delete(ctx, "a")
		store.Delete(ctx, "a")
		require.False(t, store.Has(ctx, "a"))
		require.True(t, store.Has(ctx, "b"))

		store.Clear(ctx)
		store.Clear(ctx)
		require.False(t, store.Has(ctx, "b"))
		requireStored(t, kv, "unrelated", true)
	})

	t.Run("storage failures are swallowed", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		kv := &failingKV{Memory: kvstore.NewMemory(), failSet: true}
		store := durablecache.New(kv)

		store.Set(ctx, "x", payload{A: 1}, time.Hour)
		_, ok := durablecache.Get[payload](ctx, store, "x")
		require.False(t, ok)

		kv.failSet = false
		store.Set(ctx, "x", payload{A: 1}, time.Hour)
		kv.failGet = true
		_, ok = durablecache.Get[payload](ctx, store, "x")
		require.False(t, ok)

		kv.failKeys = true
		require.Equal(t, 0, store.Cleanup(ctx))
		store.Clear(ctx)
	})

	t.Run("unmarshalable values are swallowed", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		store := durablecache.New(kvstore.NewMemory())

		store.Set(ctx, "x", make(chan int), time.Hour)
		require.False(t, store.Has(ctx, "x"))
	})
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	t.Run("purges every invalid entry in the namespace", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		clock := newMockedClock()
		kv := kvstore.NewMemory()

		oldStore := durablecache.New(kv, durablecache.WithVersion("0.9.0"), durablecache.WithNowFunc(clock.Now))
		oldStore.Set(ctx, "outdated", 1, time.Hour)

		store := durablecache.New(kv, durablecache.WithNowFunc(clock.Now))
		store.Set(ctx, "short", 1, time.Minute)
		store.Set(ctx, "long", 1, time.Hour)
		require.NoError(t, kv.Set(ctx, "catalogcache_corrupt", []byte("]]")))
		require.NoError(t, kv.Set(ctx, "otherapp_corrupt", []byte("]]")))

		clock.advance(2 * time.Minute)

		require.Equal(t, 3, store.Cleanup(ctx))

		keys, err := kv.Keys(ctx, "")
		require.NoError(t, err)
		require.Equal(t, []string{"catalogcache_long", "otherapp_corrupt"}, keys)

		require.Equal(t, 0, store.Cleanup(ctx))
	})

	t.Run("background cleanup runs immediately", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		clock := newMockedClock()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv, durablecache.WithNowFunc(clock.Now))

		store.Set(ctx, "short", 1, time.Minute)
		clock.advance(time.Hour)

		stop := store.StartCleanup(ctx, time.Hour)
		defer stop()

		require.Eventually(t, func() bool {
			_, ok, err := kv.Get(ctx, "catalogcache_short")
			return err == nil && !ok
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("background cleanup runs on an interval", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		clock := newMockedClock()
		kv := kvstore.NewMemory()
		store := durablecache.New(kv, durablecache.WithNowFunc(clock.Now))

		stop := store.StartCleanup(ctx, 10*time.Millisecond)

		store.Set(ctx, "short", 1, time.Minute)
		clock.advance(time.Hour)

		require.Eventually(t, func() bool {
			_, ok, err := kv.Get(ctx, "catalogcache_short")
			return err == nil && !ok
		}, 5*time.Second, 10*time.Millisecond)

		stop()
	})
}
