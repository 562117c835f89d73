package preload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/Amund211/catalogcache/internal/logging"
)

const DefaultDelay = 300 * time.Millisecond

// ScheduleFunc runs task after delay unless the returned cancel is called first.
// cancel reports whether it stopped the task from running.
type ScheduleFunc func(delay time.Duration, task func()) (cancel func() bool)

func AfterFunc(delay time.Duration, task func()) func() bool {
	return time.AfterFunc(delay, task).Stop
}

type DetailFetcher interface {
	GetCourseDetail(ctx context.Context, id string) (domain.CourseDetail, error)
}

type pendingTask struct {
	cancel func() bool
}

// Preloader prefetches course details into the durable store when a user shows intent
// to open them, so the navigation that follows is a cache hit.
type Preloader struct {
	store    *durablecache.Store
	fetcher  DetailFetcher
	delay    time.Duration
	schedule ScheduleFunc

	mutex   sync.Mutex
	pending map[string]*pendingTask
	running sync.WaitGroup
}

type Option func(*Preloader)

func WithDelay(delay time.Duration) Option {
	return func(p *Preloader) {
		p.delay = delay
	}
}

func WithScheduleFunc(schedule ScheduleFunc) Option {
	return func(p *Preloader) {
		p.schedule = schedule
	}
}

func New(store *durablecache.Store, fetcher DetailFetcher, opts ...Option) *Preloader {
	p := &Preloader{
		store:    store,
		fetcher:  fetcher,
		delay:    DefaultDelay,
		schedule: AfterFunc,
		pending:  make(map[string]*pendingTask),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PointerEnter schedules a prefetch of the course detail after the configured delay.
// Entering an id that is already pending does nothing.
func (p *Preloader) PointerEnter(ctx context.Context, rawID string) error {
	id, err := domain.NormalizeID(rawID)
	if err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.pending[id]; ok {
		return nil
	}

	task := &pendingTask{}
	fireCtx := context.WithoutCancel(ctx)
	task.cancel = p.schedule(p.delay, func() {
		p.fire(fireCtx, id, task)
	})
	p.pending[id] = task

	logging.FromContext(ctx).DebugContext(ctx, "Scheduled course detail preload", "courseId", id)
	return nil
}

// PointerLeave cancels a pending prefetch. Reports whether a pending prefetch was cancelled.
func (p *Preloader) PointerLeave(rawID string) bool {
	id, err := domain.NormalizeID(rawID)
	if err != nil {
		return false
	}

	p.mutex.Lock()
	task, ok := p.pending[id]
	delete(p.pending, id)
	p.mutex.Unlock()

	if !ok {
		return false
	}
	return task.cancel()
}

// Pending reports whether a prefetch for id is scheduled and has not fired yet
func (p *Preloader) Pending(rawID string) bool {
	id, err := domain.NormalizeID(rawID)
	if err != nil {
		return false
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	_, ok := p.pending[id]
	return ok
}

// Close cancels every pending prefetch and waits for prefetches already running
func (p *Preloader) Close() {
	p.mutex.Lock()
	tasks := p.pending
	p.pending = make(map[string]*pendingTask)
	p.mutex.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	p.running.Wait()
}

func (p *Preloader) fire(ctx context.Context, id string, task *pendingTask) {
	p.mutex.Lock()
	if p.pending[id] != task {
		// Cancelled or replaced after the timer fired
		p.mutex.Unlock()
		return
	}
	delete(p.pending, id)
	p.running.Add(1)
	p.mutex.Unlock()
	defer p.running.Done()

	logger := logging.FromContext(ctx).With("courseId", id)
	key := durablecache.CourseDetailKey(id)

	if p.store.Has(ctx, key) {
		logger.DebugContext(ctx, "Course detail already cached, skipping preload")
		return
	}

	detail, err := p.fetcher.GetCourseDetail(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			logger.InfoContext(ctx, "Preloaded course does not exist")
			return
		}
		logger.WarnContext(ctx, "Failed to preload course detail", "error", err.Error())
		return
	}

	p.store.Set(ctx, key, detail, durablecache.DefaultListTTL)
	logger.InfoContext(ctx, "Preloaded course detail")
}
