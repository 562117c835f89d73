package domaintest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Amund211/catalogcache/internal/domain"
)

// FakeCatalogProvider is an in-memory catalog with call counters, injectable errors and gates
type FakeCatalogProvider struct {
	courses     []domain.Course
	instructors []domain.Instructor

	RankingCalls atomic.Int32
	FullCalls    atomic.Int32
	DetailCalls  atomic.Int32
	StatsCalls   atomic.Int32

	lock         sync.Mutex
	rankingErr   error
	fullErr      error
	detailErr    error
	rankingGate  chan struct{}
	fullGate     chan struct{}
	detailUpdate time.Time
}

// NewFakeCatalogProvider serves the given enriched records.
// Popular rankings follow the given order, top rated rankings the reverse order.
func NewFakeCatalogProvider(courses []domain.Course, instructors []domain.Instructor) *FakeCatalogProvider {
	return &FakeCatalogProvider{
		courses:      domain.CloneCourses(courses),
		instructors:  domain.CloneInstructors(instructors),
		detailUpdate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (p *FakeCatalogProvider) SetRankingError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.rankingErr = err
}

func (p *FakeCatalogProvider) SetFullError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.fullErr = err
}

func (p *FakeCatalogProvider) SetDetailError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.detailErr = err
}

// BlockRankings makes ranking calls wait until the returned release func is called
func (p *FakeCatalogProvider) BlockRankings() func() {
	p.lock.Lock()
	defer p.lock.Unlock()
	gate := make(chan struct{})
	p.rankingGate = gate
	return sync.OnceFunc(func() { close(gate) })
}

// BlockFull makes full catalog calls wait until the returned release func is called
func (p *FakeCatalogProvider) BlockFull() func() {
	p.lock.Lock()
	defer p.lock.Unlock()
	gate := make(chan struct{})
	p.fullGate = gate
	return sync.OnceFunc(func() { close(gate) })
}

// enter counts the call once it is bound to the current gate, then waits for the gate
func (p *FakeCatalogProvider) enter(ctx context.Context, calls *atomic.Int32, gate func(p *FakeCatalogProvider) chan struct{}, errFunc func(p *FakeCatalogProvider) error) error {
	p.lock.Lock()
	g := gate(p)
	calls.Add(1)
	p.lock.Unlock()

	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	return errFunc(p)
}

func rankingGate(p *FakeCatalogProvider) chan struct{} { return p.rankingGate }
func fullGate(p *FakeCatalogProvider) chan struct{}    { return p.fullGate }
func rankingErr(p *FakeCatalogProvider) error          { return p.rankingErr }
func fullErr(p *FakeCatalogProvider) error             { return p.fullErr }

func ranked[T any](items []T, ranking domain.Ranking, limit int) []T {
	items = slices.Clone(items)
	if ranking == domain.RankingTopRated {
		slices.Reverse(items)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (p *FakeCatalogProvider) GetCourseRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Course, error) {
	if err := p.enter(ctx, &p.RankingCalls, rankingGate, rankingErr); err != nil {
		return nil, err
	}

	courses := domain.CloneCourses(ranked(p.courses, ranking, limit))
	for i := range courses {
		courses[i].Stats = nil
	}
	return courses, nil
}

func (p *FakeCatalogProvider) GetInstructorRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Instructor, error) {
	if err := p.enter(ctx, &p.RankingCalls, rankingGate, rankingErr); err != nil {
		return nil, err
	}

	instructors := domain.CloneInstructors(ranked(p.instructors, ranking, limit))
	for i := range instructors {
		instructors[i].Stats = nil
	}
	return instructors, nil
}

func (p *FakeCatalogProvider) GetAllCourses(ctx context.Context) ([]domain.Course, error) {
	if err := p.enter(ctx, &p.FullCalls, fullGate, fullErr); err != nil {
		return nil, err
	}
	return domain.CloneCourses(p.courses), nil
}

func (p *FakeCatalogProvider) GetAllInstructors(ctx context.Context) ([]domain.Instructor, error) {
	if err := p.enter(ctx, &p.FullCalls, fullGate, fullErr); err != nil {
		return nil, err
	}
	return domain.CloneInstructors(p.instructors), nil
}

func (p *FakeCatalogProvider) GetCourseDetail(ctx context.Context, id string) (domain.CourseDetail, error) {
	p.DetailCalls.Add(1)

	p.lock.Lock()
	err := p.detailErr
	p.lock.Unlock()
	if err != nil {
		return domain.CourseDetail{}, err
	}

	for _, course := range p.courses {
		if course.ID == id {
			return domain.CourseDetail{
				Course:      course.Clone(),
				Description: "About " + course.Title,
				Syllabus:    []string{"Introduction", "Summary"},
				UpdatedAt:   p.detailUpdate,
			}, nil
		}
	}
	return domain.CourseDetail{}, domain.ErrCourseNotFound
}

func (p *FakeCatalogProvider) GetCatalogStats(ctx context.Context) (domain.CatalogStats, error) {
	p.StatsCalls.Add(1)

	stats := domain.CatalogStats{
		CourseCount:     len(p.courses),
		InstructorCount: len(p.instructors),
		QueriedAt:       p.detailUpdate,
	}
	for _, course := range p.courses {
		if course.Stats != nil {
			stats.EnrollmentCount += course.Stats.EnrollmentCount
		}
	}
	return stats, nil
}
