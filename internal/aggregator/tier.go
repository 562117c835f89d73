package aggregator

import (
	"context"
	"sync"
	"time"
)

type tierState int

const (
	stateIdle tierState = iota
	stateLoading
	stateReady
	// A failed tier is retried by the next caller, same as an idle one
	stateFailed
)

func (s tierState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateLoading:
		return "loading"
	case stateReady:
		return "ready"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// flight is a single load shared by every caller that joined it.
// value and err are written once, before done is closed.
type flight[T any] struct {
	done  chan struct{}
	value T
	err   error
}

type tier[T any] struct {
	state    tierState
	flight   *flight[T]
	value    T
	err      error
	loadedAt time.Time
}

func alwaysFresh(time.Time) bool {
	return true
}

// tierLocks guards the tiers. reload is held exclusively while a reload resets the tiers and
// their persisted snapshots, and shared while a flight commits and persists its result.
type tierLocks struct {
	mutex  sync.Mutex
	reload sync.RWMutex
}

// fetchFunc loads a tier value. remote reports whether the value came from the provider and
// should be persisted.
type fetchFunc[T any] func(ctx context.Context) (value T, remote bool, err error)

// load returns the tier value, starting a flight unless one is already running.
// The flight runs detached from ctx. Only the flight currently registered on the tier may
// update it or persist its result, so loads orphaned by a reset are ignored.
func load[T any](
	ctx context.Context,
	locks *tierLocks,
	t *tier[T],
	nowFunc func() time.Time,
	isFresh func(loadedAt time.Time) bool,
	fetch fetchFunc[T],
	persist func(ctx context.Context, value T),
) (T, error) {
	locks.mutex.Lock()
	if t.state == stateReady && isFresh(t.loadedAt) {
		value := t.value
		locks.mutex.Unlock()
		return value, nil
	}

	f := t.flight
	if t.state != stateLoading {
		f = &flight[T]{done: make(chan struct{})}
		t.state = stateLoading
		t.flight = f

		go func(ctx context.Context) {
			value, remote, err := fetch(ctx)

			locks.reload.RLock()
			locks.mutex.Lock()
			current := t.flight == f
			if current {
				t.flight = nil
				if err != nil {
					t.state = stateFailed
					t.err = err
				} else {
					t.state = stateReady
					t.value = value
					t.err = nil
					t.loadedAt = nowFunc()
				}
			}
			locks.mutex.Unlock()

			if current && err == nil && remote && persist != nil {
				persist(ctx, value)
			}
			locks.reload.RUnlock()

			f.value = value
			f.err = err
			close(f.done)
		}(context.WithoutCancel(ctx))
	}
	locks.mutex.Unlock()

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var empty T
		return empty, ctx.Err()
	}
}
