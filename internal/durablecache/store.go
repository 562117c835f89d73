package durablecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/reporting"
)

const (
	DefaultPrefix  = "catalogcache"
	DefaultVersion = "1.0.0"

	DefaultListTTL         = 30 * time.Minute
	DefaultStatsTTL        = 15 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// KeyValueStore is the persistence primitive the cache is layered on.
// A single Get/Set/Delete is expected to be atomic with respect to that key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every stored key starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
	Version   string          `json:"version"`
}

type Store struct {
	kv      KeyValueStore
	prefix  string
	version string
	nowFunc func() time.Time
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithVersion(version string) Option {
	return func(s *Store) {
		if version != "" {
			s.version = version
		}
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = nowFunc
	}
}

func New(kv KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		prefix:  DefaultPrefix,
		version: DefaultVersion,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Version() string {
	return s.version
}

func (s *Store) namespace() string {
	return s.prefix + "_"
}

func (s *Store) storageKey(key string) string {
	return s.namespace() + key
}

// Set stores value under key for ttl. Failures are logged and reported, never returned:
// a write that did not happen is indistinguishable from a later cache miss.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.fault(ctx, fmt.Errorf("failed to marshal cache value: %w", err), key)
		return
	}

	serialized, err := json.Marshal(entry{
		Data:      data,
		Timestamp: s.nowFunc().UnixMilli(),
		TTL:       ttl.Milliseconds(),
		Version:   s.version,
	})
	if err != nil {
		s.fault(ctx, fmt.Errorf("failed to marshal cache entry: %w", err), key)
		return
	}

	err = s.kv.Set(ctx, s.storageKey(key), serialized)
	if err != nil {
		s.fault(ctx, fmt.Errorf("failed to write cache entry: %w", err), key)
		return
	}
	metrics.writes.Add(ctx, 1)
}

// Get returns the value stored under key decoded as T.
// Absent, expired, outdated and corrupt entries are all misses; the last three are purged.
func Get[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var empty T

	e, ok := s.load(ctx, s.storageKey(key))
	if !ok {
		metrics.misses.Add(ctx, 1)
		return empty, false
	}

	var value T
	if err := json.Unmarshal(e.Data, &value); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Purging undecodable cache entry", "key", key, "error", err.Error())
		s.purge(ctx, s.storageKey(key))
		metrics.misses.Add(ctx, 1)
		return empty, false
	}

	metrics.hits.Add(ctx, 1)
	return value, true
}

func (s *Store) Has(ctx context.Context, key string) bool {
	_, ok := s.load(ctx, s.storageKey(key))
	return ok
}

func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.kv.Delete(ctx, s.storageKey(key)); err != nil {
		s.fault(ctx, fmt.Errorf("failed to delete cache entry: %w", err), key)
	}
}

// Clear removes every entry in the namespace, regardless of validity
func (s *Store) Clear(ctx context.Context) {
	keys, err := s.kv.Keys(ctx, s.namespace())
	if err != nil {
		s.fault(ctx, fmt.Errorf("failed to list cache keys: %w", err), "")
		return
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			s.fault(ctx, fmt.Errorf("failed to delete cache entry: %w", err), strings.TrimPrefix(key, s.namespace()))
		}
	}
}

// Cleanup purges every entry in the namespace that is outdated, expired or unparsable.
// Returns the number of purged entries.
func (s *Store) Cleanup(ctx context.Context) int {
	keys, err := s.kv.Keys(ctx, s.namespace())
	if err != nil {
		s.fault(ctx, fmt.Errorf("failed to list cache keys: %w", err), "")
		return 0
	}

	purged := 0
	for _, key := range keys {
		_, ok, reason := s.read(ctx, key)
		if ok || reason == "" {
			continue
		}
		if s.purge(ctx, key) {
			purged++
		}
	}

	logging.FromContext(ctx).InfoContext(ctx, "Cache cleanup completed", "scanned", len(keys), "purged", purged)
	return purged
}

// StartCleanup runs Cleanup immediately and then every interval until the returned stop
// function is called.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		s.Cleanup(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Store) load(ctx context.Context, storageKey string) (entry, bool) {
	e, ok, reason := s.read(ctx, storageKey)
	if !ok && reason != "" {
		logging.FromContext(ctx).InfoContext(ctx, "Purging invalid cache entry", "key", storageKey, "reason", reason)
		s.purge(ctx, storageKey)
	}
	return e, ok
}

// read returns the entry if it is valid. A non-empty reason means the entry exists but must be purged.
func (s *Store) read(ctx context.Context, storageKey string) (entry, bool, string) {
	raw, found, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		s.fault(ctx, fmt.Errorf("failed to read cache entry: %w", err), storageKey)
		return entry{}, false, ""
	}
	if !found {
		return entry{}, false, ""
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return entry{}, false, "corrupt"
	}
	if e.Version != s.version {
		return entry{}, false, "version"
	}
	if s.nowFunc().UnixMilli()-e.Timestamp > e.TTL {
		return entry{}, false, "expired"
	}
	return e, true, ""
}

func (s *Store) purge(ctx context.Context, storageKey string) bool {
	if err := s.kv.Delete(ctx, storageKey); err != nil {
		s.fault(ctx, fmt.Errorf("failed to purge cache entry: %w", err), storageKey)
		return false
	}
	metrics.purges.Add(ctx, 1)
	return true
}

func (s *Store) fault(ctx context.Context, err error, key string) {
	if errors.Is(err, context.Canceled) {
		logging.FromContext(ctx).InfoContext(ctx, "Cache operation canceled", slog.String("key", key))
		return
	}
	reporting.Report(ctx, err, map[string]string{"key": key})
}
