package progressive

import (
	"context"
	"slices"
	"sync"

	"github.com/Amund211/catalogcache/internal/logging"
)

// Source binds a controller to the data it presents
type Source[T any] struct {
	// IsWarm reports whether Essential can answer without a remote load
	IsWarm func() bool
	// Essential returns the summary lists, concatenated. Duplicates are allowed.
	Essential func(ctx context.Context) ([]T, error)
	// DirectFull fetches the complete dataset when nothing is cached yet
	DirectFull func(ctx context.Context) ([]T, error)
	// Full returns the complete, enriched dataset through the shared cache
	Full func(ctx context.Context) ([]T, error)

	Identity     func(T) string
	SearchFields func(T) []string
}

type Snapshot[T any] struct {
	Items    []T
	Filtered []T
	Filter   string
	Loading  bool
	Enriched bool
	// Err is the blocking error of a failed initial paint
	Err error
}

// Controller drives one surface through an instant paint from cached data and a concurrent
// background enrichment. Held data is only ever replaced, never cleared.
type Controller[T any] struct {
	source   Source[T]
	onChange func(Snapshot[T])

	mutex      sync.Mutex
	items      []T
	filter     string
	loading    bool
	enriched   bool
	err        error
	generation uint64

	background sync.WaitGroup
}

type Option[T any] func(*Controller[T])

// WithOnChange registers a callback receiving every published snapshot.
// The callback runs on the goroutine that published the change.
func WithOnChange[T any](onChange func(Snapshot[T])) Option[T] {
	return func(c *Controller[T]) {
		c.onChange = onChange
	}
}

func NewController[T any](source Source[T], opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{source: source}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start kicks off enrichment in the background and runs the initial paint alongside it.
// The returned error is the blocking error of the initial paint, if any.
func (c *Controller[T]) Start(ctx context.Context) error {
	c.mutex.Lock()
	c.generation++
	generation := c.generation
	c.mutex.Unlock()

	c.background.Add(1)
	go func(ctx context.Context) {
		defer c.background.Done()
		c.enrich(ctx, generation)
	}(context.WithoutCancel(ctx))

	return c.paint(ctx, generation)
}

// Retry restarts both phases. Results of earlier runs are ignored once a retry starts.
func (c *Controller[T]) Retry(ctx context.Context) error {
	return c.Start(ctx)
}

// Wait blocks until every background enrichment has finished
func (c *Controller[T]) Wait() {
	c.background.Wait()
}

func (c *Controller[T]) SetFilter(term string) {
	c.mutex.Lock()
	c.filter = term
	snapshot := c.snapshotLocked()
	c.mutex.Unlock()

	c.notify(snapshot)
}

func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T]) paint(ctx context.Context, generation uint64) error {
	logger := logging.FromContext(ctx)

	if c.source.IsWarm() {
		items, err := c.source.Essential(ctx)
		if err == nil {
			c.publish(generation, func() {
				c.replaceItems(c.dedup(items))
				c.loading = false
				c.err = nil
			})
			return nil
		}
		logger.WarnContext(ctx, "Failed to read essential data, falling back to a direct fetch", "error", err.Error())
	}

	c.publish(generation, func() {
		c.loading = !c.enriched
	})

	items, err := c.source.DirectFull(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Initial load failed", "error", err.Error())
		c.publish(generation, func() {
			c.loading = false
			// Enrichment may have finished first, in which case there is data to show
			if !c.enriched {
				c.err = err
			}
		})
		return err
	}

	c.publish(generation, func() {
		c.replaceItems(c.dedup(items))
		c.loading = false
		c.err = nil
	})
	return nil
}

func (c *Controller[T]) enrich(ctx context.Context, generation uint64) {
	items, err := c.source.Full(ctx)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Background enrichment failed, keeping current data", "error", err.Error())
		return
	}

	c.publish(generation, func() {
		c.items = c.dedup(items)
		c.enriched = true
		c.loading = false
		c.err = nil
	})
}

// replaceItems installs a summary dataset unless enriched data is already held.
// Must be called with the lock held.
func (c *Controller[T]) replaceItems(items []T) {
	if c.enriched {
		return
	}
	c.items = c.merge(items, c.items)
}

// merge returns next followed by every held item whose identity is missing from next
func (c *Controller[T]) merge(next []T, held []T) []T {
	present := make(map[string]struct{}, len(next))
	for _, item := range next {
		present[c.source.Identity(item)] = struct{}{}
	}

	merged := slices.Clip(next)
	for _, item := range held {
		if _, ok := present[c.source.Identity(item)]; !ok {
			merged = append(merged, item)
		}
	}
	return merged
}

// dedup keeps the first item for every identity
func (c *Controller[T]) dedup(items []T) []T {
	seen := make(map[string]struct{}, len(items))
	unique := make([]T, 0, len(items))
	for _, item := range items {
		id := c.source.Identity(item)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

// publish applies update if generation is still current and notifies the listener
func (c *Controller[T]) publish(generation uint64, update func()) {
	c.mutex.Lock()
	if generation != c.generation {
		c.mutex.Unlock()
		return
	}
	update()
	snapshot := c.snapshotLocked()
	c.mutex.Unlock()

	c.notify(snapshot)
}

func (c *Controller[T]) notify(snapshot Snapshot[T]) {
	if c.onChange != nil {
		c.onChange(snapshot)
	}
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Items:    slices.Clone(c.items),
		Filtered: Filter(c.items, c.filter, c.source.SearchFields),
		Filter:   c.filter,
		Loading:  c.loading,
		Enriched: c.enriched,
		Err:      c.err,
	}
}
