package kvstore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Amund211/catalogcache/internal/durablecache"
)

type Memory struct {
	entries map[string][]byte
	lock    sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	value, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.entries[key] = slices.Clone(value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

var _ durablecache.KeyValueStore = (*Memory)(nil)
