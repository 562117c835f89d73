package catalogprovider

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Amund211/catalogcache/internal/domain"
)

const (
	mockedCourseCount     = 48
	mockedInstructorCount = 12
)

var mockedCategories = []string{"Programming", "Design", "Data Science", "Business", "Photography", "Música"}

type mockedCatalogProvider struct {
	courses     []domain.Course
	instructors []domain.Instructor
	nowFunc     func() time.Time
}

// NewMockedCatalogProvider serves a fixed, deterministic catalog
func NewMockedCatalogProvider(nowFunc func() time.Time) CatalogProvider {
	instructors := make([]domain.Instructor, 0, mockedInstructorCount)
	for i := range mockedInstructorCount {
		instructors = append(instructors, domain.Instructor{
			ID:       fmt.Sprintf("instructor-%02d", i),
			Name:     fmt.Sprintf("Instructor %02d", i),
			Headline: fmt.Sprintf("Teaches %s", mockedCategories[i%len(mockedCategories)]),
			Score:    float64((i*7)%mockedInstructorCount) / mockedInstructorCount,
			Stats:    &domain.InstructorStats{},
		})
	}

	courses := make([]domain.Course, 0, mockedCourseCount)
	for i := range mockedCourseCount {
		instructor := &instructors[i%mockedInstructorCount]
		stats := &domain.CourseStats{
			EnrollmentCount: 100 + (i*37)%1000,
			ReviewCount:     10 + (i*13)%200,
			AverageRating:   3 + float64((i*11)%21)/10,
			CompletionRate:  float64((i*17)%100) / 100,
		}
		courses = append(courses, domain.Course{
			ID:             fmt.Sprintf("course-%02d", i),
			Title:          fmt.Sprintf("%s %d", mockedCategories[i%len(mockedCategories)], i),
			Category:       mockedCategories[i%len(mockedCategories)],
			InstructorID:   instructor.ID,
			InstructorName: instructor.Name,
			Score:          float64(stats.EnrollmentCount) / 1000,
			Stats:          stats,
		})

		instructor.Stats.CourseCount++
		instructor.Stats.StudentCount += stats.EnrollmentCount
		instructor.Stats.ReviewCount += stats.ReviewCount
		instructor.Stats.AverageRating += stats.AverageRating
	}
	for i := range instructors {
		if instructors[i].Stats.CourseCount > 0 {
			instructors[i].Stats.AverageRating /= float64(instructors[i].Stats.CourseCount)
		}
	}

	return &mockedCatalogProvider{
		courses:     courses,
		instructors: instructors,
		nowFunc:     nowFunc,
	}
}

func rankCourses(courses []domain.Course, ranking domain.Ranking) {
	slices.SortStableFunc(courses, func(a, b domain.Course) int {
		if ranking == domain.RankingTopRated {
			return cmp.Compare(b.Stats.AverageRating, a.Stats.AverageRating)
		}
		return cmp.Compare(b.Stats.EnrollmentCount, a.Stats.EnrollmentCount)
	})
}

func rankInstructors(instructors []domain.Instructor, ranking domain.Ranking) {
	slices.SortStableFunc(instructors, func(a, b domain.Instructor) int {
		if ranking == domain.RankingTopRated {
			return cmp.Compare(b.Stats.AverageRating, a.Stats.AverageRating)
		}
		return cmp.Compare(b.Stats.StudentCount, a.Stats.StudentCount)
	})
}

func limited[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (m *mockedCatalogProvider) GetCourseRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Course, error) {
	courses := domain.CloneCourses(m.courses)
	rankCourses(courses, ranking)
	courses = limited(courses, limit)
	for i := range courses {
		courses[i].Stats = nil
	}
	return courses, nil
}

func (m *mockedCatalogProvider) GetInstructorRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Instructor, error) {
	instructors := domain.CloneInstructors(m.instructors)
	rankInstructors(instructors, ranking)
	instructors = limited(instructors, limit)
	for i := range instructors {
		instructors[i].Stats = nil
	}
	return instructors, nil
}

func (m *mockedCatalogProvider) GetAllCourses(ctx context.Context) ([]domain.Course, error) {
	return domain.CloneCourses(m.courses), nil
}

func (m *mockedCatalogProvider) GetAllInstructors(ctx context.Context) ([]domain.Instructor, error) {
	return domain.CloneInstructors(m.instructors), nil
}

func (m *mockedCatalogProvider) GetCourseDetail(ctx context.Context, id string) (domain.CourseDetail, error) {
	normalizedID, err := domain.NormalizeID(id)
	if err != nil {
		return domain.CourseDetail{}, err
	}

	for _, course := range m.courses {
		if course.ID != normalizedID {
			continue
		}
		return domain.CourseDetail{
			Course:      course.Clone(),
			Description: fmt.Sprintf("An introduction to %s taught by %s.", course.Category, course.InstructorName),
			Syllabus:    []string{"Getting started", "Fundamentals", "Practice", "Final project"},
			UpdatedAt:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		}, nil
	}
	return domain.CourseDetail{}, domain.ErrCourseNotFound
}

func (m *mockedCatalogProvider) GetCatalogStats(ctx context.Context) (domain.CatalogStats, error) {
	stats := domain.CatalogStats{
		CourseCount:     len(m.courses),
		InstructorCount: len(m.instructors),
		QueriedAt:       m.nowFunc(),
	}
	for _, course := range m.courses {
		stats.EnrollmentCount += course.Stats.EnrollmentCount
		stats.AverageRating += course.Stats.AverageRating
	}
	if len(m.courses) > 0 {
		stats.AverageRating /= float64(len(m.courses))
	}
	return stats, nil
}
