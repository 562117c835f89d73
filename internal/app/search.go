package app

import (
	"context"
	"fmt"

	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/progressive"
)

type CourseCatalog interface {
	AllCourses(ctx context.Context) ([]domain.Course, error)
}

type InstructorCatalog interface {
	AllInstructors(ctx context.Context) ([]domain.Instructor, error)
}

type SearchCourses func(ctx context.Context, term string) ([]domain.Course, error)

func BuildSearchCourses(catalog CourseCatalog) SearchCourses {
	return func(ctx context.Context, term string) ([]domain.Course, error) {
		courses, err := catalog.AllCourses(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get courses: %w", err)
		}
		return progressive.Filter(courses, term, progressive.CourseSearchFields), nil
	}
}

type SearchInstructors func(ctx context.Context, term string) ([]domain.Instructor, error)

func BuildSearchInstructors(catalog InstructorCatalog) SearchInstructors {
	return func(ctx context.Context, term string) ([]domain.Instructor, error) {
		instructors, err := catalog.AllInstructors(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get instructors: %w", err)
		}
		return progressive.Filter(instructors, term, progressive.InstructorSearchFields), nil
	}
}
