package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/Amund211/catalogcache/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const DefaultEssentialLimit = 10

type CatalogProvider interface {
	GetCourseRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Course, error)
	GetInstructorRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Instructor, error)
	GetAllCourses(ctx context.Context) ([]domain.Course, error)
	GetAllInstructors(ctx context.Context) ([]domain.Instructor, error)
}

type essentialData struct {
	PopularCourses      []domain.Course     `json:"popularCourses"`
	PopularInstructors  []domain.Instructor `json:"popularInstructors"`
	TopRatedCourses     []domain.Course     `json:"topRatedCourses"`
	TopRatedInstructors []domain.Instructor `json:"topRatedInstructors"`
}

type fullData struct {
	Courses     []domain.Course     `json:"courses"`
	Instructors []domain.Instructor `json:"instructors"`
}

// Aggregator is the process wide in-memory catalog shared by every consumer.
// The essential tier holds the ranked summary lists, the full tier the complete enriched catalog.
// Each tier has at most one load in flight.
type Aggregator struct {
	provider       CatalogProvider
	store          *durablecache.Store
	essentialLimit int
	fullTierTTL    time.Duration
	nowFunc        func() time.Time

	locks     tierLocks
	essential tier[essentialData]
	full      tier[fullData]
}

type Option func(*Aggregator)

func WithEssentialLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.essentialLimit = limit
		}
	}
}

// WithDurableStore persists tier snapshots so a restarted process can paint without a remote fetch
func WithDurableStore(store *durablecache.Store) Option {
	return func(a *Aggregator) {
		a.store = store
	}
}

// WithFullTierTTL makes the full tier reload once it is older than ttl. Zero keeps it forever.
func WithFullTierTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.fullTierTTL = ttl
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(a *Aggregator) {
		a.nowFunc = nowFunc
	}
}

func New(provider CatalogProvider, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider:       provider,
		essentialLimit: DefaultEssentialLimit,
		nowFunc:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadAll makes sure the essential tier is loaded, joining a load already in flight.
// A canceled ctx only stops this caller from waiting.
func (a *Aggregator) LoadAll(ctx context.Context) error {
	_, err := a.loadEssential(ctx)
	return err
}

func (a *Aggregator) loadEssential(ctx context.Context) (essentialData, error) {
	return load(ctx, &a.locks, &a.essential, a.nowFunc, alwaysFresh, a.fetchEssential, persister[essentialData](a, durablecache.EssentialSnapshotKey))
}

func (a *Aggregator) loadFull(ctx context.Context) (fullData, error) {
	if _, err := a.loadEssential(ctx); err != nil {
		return fullData{}, err
	}

	isFresh := alwaysFresh
	if a.fullTierTTL > 0 {
		isFresh = func(loadedAt time.Time) bool {
			return a.nowFunc().Sub(loadedAt) <= a.fullTierTTL
		}
	}
	return load(ctx, &a.locks, &a.full, a.nowFunc, isFresh, a.fetchFull, persister[fullData](a, durablecache.FullSnapshotKey))
}

func (a *Aggregator) PopularCourses(ctx context.Context) ([]domain.Course, error) {
	data, err := a.loadEssential(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneCourses(data.PopularCourses), nil
}

func (a *Aggregator) PopularInstructors(ctx context.Context) ([]domain.Instructor, error) {
	data, err := a.loadEssential(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneInstructors(data.PopularInstructors), nil
}

func (a *Aggregator) TopRatedCourses(ctx context.Context) ([]domain.Course, error) {
	data, err := a.loadEssential(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneCourses(data.TopRatedCourses), nil
}

func (a *Aggregator) TopRatedInstructors(ctx context.Context) ([]domain.Instructor, error) {
	data, err := a.loadEssential(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneInstructors(data.TopRatedInstructors), nil
}

func (a *Aggregator) AllCourses(ctx context.Context) ([]domain.Course, error) {
	data, err := a.loadFull(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneCourses(data.Courses), nil
}

func (a *Aggregator) AllInstructors(ctx context.Context) ([]domain.Instructor, error) {
	data, err := a.loadFull(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CloneInstructors(data.Instructors), nil
}

func (a *Aggregator) IsDataLoaded() bool {
	a.locks.mutex.Lock()
	defer a.locks.mutex.Unlock()
	return a.essential.state == stateReady
}

func (a *Aggregator) IsDataLoading() bool {
	a.locks.mutex.Lock()
	defer a.locks.mutex.Unlock()
	return a.essential.state == stateLoading || a.full.state == stateLoading
}

func (a *Aggregator) IsFullDataLoaded() bool {
	a.locks.mutex.Lock()
	defer a.locks.mutex.Unlock()
	return a.full.state == stateReady
}

// ForceReload drops both tiers and any persisted snapshots, then loads the essential tier again.
// Loads already in flight still complete for their waiters but no longer update the tiers or
// the persisted snapshots.
func (a *Aggregator) ForceReload(ctx context.Context) error {
	a.locks.reload.Lock()
	if a.store != nil {
		a.store.Delete(ctx, durablecache.EssentialSnapshotKey)
		a.store.Delete(ctx, durablecache.FullSnapshotKey)
	}
	a.locks.mutex.Lock()
	a.essential = tier[essentialData]{}
	a.full = tier[fullData]{}
	a.locks.mutex.Unlock()
	a.locks.reload.Unlock()

	logging.FromContext(ctx).InfoContext(ctx, "Forcing catalog reload")

	return a.LoadAll(ctx)
}

// persister writes a freshly fetched tier to the durable store under key
func persister[T any](a *Aggregator, key string) func(ctx context.Context, value T) {
	if a.store == nil {
		return nil
	}
	return func(ctx context.Context, value T) {
		a.store.Set(ctx, key, value, durablecache.DefaultListTTL)
	}
}

func (a *Aggregator) fetchEssential(ctx context.Context) (essentialData, bool, error) {
	if a.store != nil {
		if snapshot, ok := durablecache.Get[essentialData](ctx, a.store, durablecache.EssentialSnapshotKey); ok {
			a.recordFetch(ctx, "essential", "durable", nil)
			return snapshot, false, nil
		}
	}

	var data essentialData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		courses, err := a.provider.GetCourseRanking(gctx, domain.RankingPopular, a.essentialLimit)
		if err != nil {
			return fmt.Errorf("failed to get popular courses: %w", err)
		}
		data.PopularCourses = courses
		return nil
	})
	g.Go(func() error {
		instructors, err := a.provider.GetInstructorRanking(gctx, domain.RankingPopular, a.essentialLimit)
		if err != nil {
			return fmt.Errorf("failed to get popular instructors: %w", err)
		}
		data.PopularInstructors = instructors
		return nil
	})
	g.Go(func() error {
		courses, err := a.provider.GetCourseRanking(gctx, domain.RankingTopRated, a.essentialLimit)
		if err != nil {
			return fmt.Errorf("failed to get top rated courses: %w", err)
		}
		data.TopRatedCourses = courses
		return nil
	})
	g.Go(func() error {
		instructors, err := a.provider.GetInstructorRanking(gctx, domain.RankingTopRated, a.essentialLimit)
		if err != nil {
			return fmt.Errorf("failed to get top rated instructors: %w", err)
		}
		data.TopRatedInstructors = instructors
		return nil
	})
	err := g.Wait()
	a.recordFetch(ctx, "essential", "remote", err)
	if err != nil {
		return essentialData{}, false, fmt.Errorf("failed to load essential catalog: %w", err)
	}
	return data, true, nil
}

func (a *Aggregator) fetchFull(ctx context.Context) (fullData, bool, error) {
	if a.store != nil {
		if snapshot, ok := durablecache.Get[fullData](ctx, a.store, durablecache.FullSnapshotKey); ok {
			a.recordFetch(ctx, "full", "durable", nil)
			return snapshot, false, nil
		}
	}

	var data fullData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		courses, err := a.provider.GetAllCourses(gctx)
		if err != nil {
			return fmt.Errorf("failed to get all courses: %w", err)
		}
		data.Courses = courses
		return nil
	})
	g.Go(func() error {
		instructors, err := a.provider.GetAllInstructors(gctx)
		if err != nil {
			return fmt.Errorf("failed to get all instructors: %w", err)
		}
		data.Instructors = instructors
		return nil
	})
	err := g.Wait()
	a.recordFetch(ctx, "full", "remote", err)
	if err != nil {
		return fullData{}, false, fmt.Errorf("failed to load full catalog: %w", err)
	}
	return data, true, nil
}

func (a *Aggregator) recordFetch(ctx context.Context, tierName string, source string, err error) {
	attributes := metric.WithAttributes(
		attribute.String("tier", tierName),
		attribute.String("source", source),
	)
	if err != nil {
		metrics.fetchErrors.Add(ctx, 1, attributes)
		logging.FromContext(ctx).WarnContext(ctx, "Failed to load catalog tier", "tier", tierName, "error", err.Error())
		return
	}
	metrics.fetchCount.Add(ctx, 1, attributes)
	logging.FromContext(ctx).InfoContext(ctx, "Loaded catalog tier", "tier", tierName, "source", source)
}

type TierStatus struct {
	State     string
	LoadedAt  time.Time
	LastError string
}

type Status struct {
	Essential TierStatus
	Full      TierStatus
}

func tierStatus[T any](t *tier[T]) TierStatus {
	status := TierStatus{
		State:    t.state.String(),
		LoadedAt: t.loadedAt,
	}
	if t.state == stateFailed && t.err != nil {
		status.LastError = t.err.Error()
	}
	return status
}

func (a *Aggregator) Status() Status {
	a.locks.mutex.Lock()
	defer a.locks.mutex.Unlock()
	return Status{
		Essential: tierStatus(&a.essential),
		Full:      tierStatus(&a.full),
	}
}
