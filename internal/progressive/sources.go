package progressive

import (
	"context"
	"fmt"

	"github.com/Amund211/catalogcache/internal/domain"
)

type CourseAggregator interface {
	IsDataLoaded() bool
	PopularCourses(ctx context.Context) ([]domain.Course, error)
	TopRatedCourses(ctx context.Context) ([]domain.Course, error)
	AllCourses(ctx context.Context) ([]domain.Course, error)
}

type InstructorAggregator interface {
	IsDataLoaded() bool
	PopularInstructors(ctx context.Context) ([]domain.Instructor, error)
	TopRatedInstructors(ctx context.Context) ([]domain.Instructor, error)
	AllInstructors(ctx context.Context) ([]domain.Instructor, error)
}

type CourseProvider interface {
	GetAllCourses(ctx context.Context) ([]domain.Course, error)
}

type InstructorProvider interface {
	GetAllInstructors(ctx context.Context) ([]domain.Instructor, error)
}

func concat[T any](ctx context.Context, lists ...func(context.Context) ([]T, error)) ([]T, error) {
	var all []T
	for _, list := range lists {
		items, err := list(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get essential list: %w", err)
		}
		all = append(all, items...)
	}
	return all, nil
}

func CourseSearchFields(c domain.Course) []string {
	return []string{c.Title, c.Category, c.InstructorName}
}

func InstructorSearchFields(i domain.Instructor) []string {
	return []string{i.Name, i.Headline}
}

func NewCourseSource(agg CourseAggregator, provider CourseProvider) Source[domain.Course] {
	return Source[domain.Course]{
		IsWarm: agg.IsDataLoaded,
		Essential: func(ctx context.Context) ([]domain.Course, error) {
			return concat(ctx, agg.PopularCourses, agg.TopRatedCourses)
		},
		DirectFull: provider.GetAllCourses,
		Full:       agg.AllCourses,
		Identity: func(c domain.Course) string {
			return c.ID
		},
		SearchFields: CourseSearchFields,
	}
}

func NewInstructorSource(agg InstructorAggregator, provider InstructorProvider) Source[domain.Instructor] {
	return Source[domain.Instructor]{
		IsWarm: agg.IsDataLoaded,
		Essential: func(ctx context.Context) ([]domain.Instructor, error) {
			return concat(ctx, agg.PopularInstructors, agg.TopRatedInstructors)
		},
		DirectFull: provider.GetAllInstructors,
		Full:       agg.AllInstructors,
		Identity: func(i domain.Instructor) string {
			return i.ID
		},
		SearchFields: InstructorSearchFields,
	}
}
