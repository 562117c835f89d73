package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// WindowLimiter allows at most limit operations to complete within any trailing window,
// with at most limit operations in flight.
type WindowLimiter struct {
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	slots chan struct{}

	mutex sync.Mutex
	// Completion times of the most recent operations, oldest first.
	// One entry is checked out per operation in flight.
	completed []time.Time
}

func NewWindowLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *WindowLimiter {
	slots := make(chan struct{}, limit)
	completed := make([]time.Time, 0, limit)
	outsideWindow := nowFunc().Add(-window)
	for range limit {
		slots <- struct{}{}
		completed = append(completed, outsideWindow)
	}

	return &WindowLimiter{
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,
		slots:     slots,
		completed: completed,
	}
}

// Limit waits for capacity and runs operation.
// Returns false without running operation if ctx is done while waiting, or if the deadline of ctx
// does not leave room for the wait plus maxOperationTime.
func (l *WindowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := l.checkout(ctx, maxOperationTime)
	if !ok {
		return false
	}
	// Give back the original entry unless the operation runs
	finished := oldest
	defer func() {
		l.checkin(finished)
	}()

	if wait := l.waitFor(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation(ctx)

	finished = l.nowFunc()
	return true
}

func (l *WindowLimiter) waitFor(completedAt time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(completedAt)
}

func (l *WindowLimiter) checkout(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldest := l.completed[0]
	if deadline, ok := ctx.Deadline(); ok {
		if l.waitFor(oldest)+maxOperationTime > deadline.Sub(l.nowFunc()) {
			return time.Time{}, false
		}
	}

	l.completed = l.completed[1:]
	return oldest, true
}

func (l *WindowLimiter) checkin(completedAt time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	i, _ := slices.BinarySearchFunc(l.completed, completedAt, func(a, b time.Time) int {
		return a.Compare(b)
	})
	l.completed = slices.Insert(l.completed, i, completedAt)
}
