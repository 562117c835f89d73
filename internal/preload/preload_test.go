package preload_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Amund211/catalogcache/internal/adapters/kvstore"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/domaintest"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/Amund211/catalogcache/internal/preload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	delay     time.Duration
	run       func()
	cancelled bool
	fired     bool
}

type fakeScheduler struct {
	lock  sync.Mutex
	tasks []*fakeTask
}

func (s *fakeScheduler) Schedule(delay time.Duration, run func()) func() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	task := &fakeTask{delay: delay, run: run}
	s.tasks = append(s.tasks, task)

	return func() bool {
		s.lock.Lock()
		defer s.lock.Unlock()
		if task.fired || task.cancelled {
			return false
		}
		task.cancelled = true
		return true
	}
}

// elapse fires every task that is neither cancelled nor fired
func (s *fakeScheduler) elapse() {
	s.lock.Lock()
	var due []*fakeTask
	for _, task := range s.tasks {
		if !task.cancelled && !task.fired {
			task.fired = true
			due = append(due, task)
		}
	}
	s.lock.Unlock()

	for _, task := range due {
		task.run()
	}
}

func (s *fakeScheduler) scheduled() []*fakeTask {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]*fakeTask{}, s.tasks...)
}

func newPreloader(t *testing.T) (*preload.Preloader, *fakeScheduler, *domaintest.FakeCatalogProvider, *durablecache.Store) {
	t.Helper()

	scheduler := &fakeScheduler{}
	provider := domaintest.NewFakeCatalogProvider(domaintest.Enrich(domaintest.Courses("course", 3)), nil)
	store := durablecache.New(kvstore.NewMemory())
	preloader := preload.New(store, provider, preload.WithScheduleFunc(scheduler.Schedule))
	t.Cleanup(preloader.Close)

	return preloader, scheduler, provider, store
}

func TestPreloader(t *testing.T) {
	t.Parallel()

	t.Run("leaving before the delay cancels the fetch", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, store := newPreloader(t)

		require.NoError(t, preloader.PointerEnter(t.Context(), "course-1"))
		require.True(t, preloader.Pending("course-1"))
		require.True(t, preloader.PointerLeave("course-1"))
		require.False(t, preloader.Pending("course-1"))

		scheduler.elapse()

		require.Equal(t, int32(0), provider.DetailCalls.Load())
		require.False(t, store.Has(t.Context(), durablecache.CourseDetailKey("course-1")))
	})

	t.Run("elapsed delay fetches and stores the detail", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, store := newPreloader(t)

		require.NoError(t, preloader.PointerEnter(t.Context(), "Course-2"))
		tasks := scheduler.scheduled()
		require.Len(t, tasks, 1)
		require.Equal(t, preload.DefaultDelay, tasks[0].delay)

		scheduler.elapse()

		require.Equal(t, int32(1), provider.DetailCalls.Load())
		require.False(t, preloader.Pending("course-2"))
		require.False(t, preloader.PointerLeave("course-2"), "nothing left to cancel")

		detail, ok := durablecache.Get[domain.CourseDetail](t.Context(), store, durablecache.CourseDetailKey("course-2"))
		require.True(t, ok)
		require.Equal(t, "course-2", detail.Course.ID)
		require.NotEmpty(t, detail.Syllabus)
	})

	t.Run("re-entering a pending id schedules once", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, _ := newPreloader(t)

		require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
		require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
		require.Len(t, scheduler.scheduled(), 1)

		scheduler.elapse()
		require.Equal(t, int32(1), provider.DetailCalls.Load())
	})

	t.Run("cached details are not fetched again", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, _ := newPreloader(t)

		require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
		scheduler.elapse()
		require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
		scheduler.elapse()

		require.Len(t, scheduler.scheduled(), 2)
		require.Equal(t, int32(1), provider.DetailCalls.Load())
	})

	t.Run("fetch failures are swallowed", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, store := newPreloader(t)
		provider.SetDetailError(assert.AnError)

		require.NoError(t, preloader.PointerEnter(t.Context(), "course-1"))
		require.NoError(t, preloader.PointerEnter(t.Context(), "missing"))
		scheduler.elapse()

		require.Equal(t, int32(2), provider.DetailCalls.Load())
		require.False(t, store.Has(t.Context(), durablecache.CourseDetailKey("course-1")))
	})

	t.Run("invalid ids are rejected", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, _, _ := newPreloader(t)

		require.ErrorIs(t, preloader.PointerEnter(t.Context(), "no spaces allowed"), domain.ErrInvalidID)
		require.Empty(t, scheduler.scheduled())
		require.False(t, preloader.PointerLeave("no spaces allowed"))
	})

	t.Run("close cancels pending tasks", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, _ := newPreloader(t)

		require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
		require.NoError(t, preloader.PointerEnter(t.Context(), "course-1"))
		preloader.Close()

		scheduler.elapse()
		require.Equal(t, int32(0), provider.DetailCalls.Load())
	})

	t.Run("a timer firing after cancellation does nothing", func(t *testing.T) {
		t.Parallel()

		preloader, scheduler, provider, _ := newPreloader(t)

		require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
		tasks := scheduler.scheduled()
		require.True(t, preloader.PointerLeave("course-0"))

		// The timer already fired and lost the race with the cancellation
		tasks[0].run()
		require.Equal(t, int32(0), provider.DetailCalls.Load())
	})
}

func TestPreloaderWithRealTimers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timer based test in short mode")
	}
	t.Parallel()

	provider := domaintest.NewFakeCatalogProvider(domaintest.Enrich(domaintest.Courses("course", 2)), nil)
	store := durablecache.New(kvstore.NewMemory())
	preloader := preload.New(store, provider, preload.WithDelay(50*time.Millisecond))
	t.Cleanup(preloader.Close)

	require.NoError(t, preloader.PointerEnter(t.Context(), "course-0"))
	require.NoError(t, preloader.PointerEnter(t.Context(), "course-1"))
	require.True(t, preloader.PointerLeave("course-1"))

	require.Eventually(t, func() bool {
		return store.Has(t.Context(), durablecache.CourseDetailKey("course-0"))
	}, time.Second, time.Millisecond)
	require.Equal(t, int32(1), provider.DetailCalls.Load())
	require.False(t, store.Has(t.Context(), durablecache.CourseDetailKey("course-1")))
}
