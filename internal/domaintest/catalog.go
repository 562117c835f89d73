package domaintest

import (
	"fmt"

	"github.com/Amund211/catalogcache/internal/domain"
)

type courseBuilder struct {
	course *domain.Course
}

func (cb *courseBuilder) WithTitle(title string) *courseBuilder {
	cb.course.Title = title
	return cb
}

func (cb *courseBuilder) WithCategory(category string) *courseBuilder {
	cb.course.Category = category
	return cb
}

func (cb *courseBuilder) WithInstructor(id, name string) *courseBuilder {
	cb.course.InstructorID = id
	cb.course.InstructorName = name
	return cb
}

func (cb *courseBuilder) WithScore(score float64) *courseBuilder {
	cb.course.Score = score
	return cb
}

func (cb *courseBuilder) WithStats(enrollments int, rating float64) *courseBuilder {
	cb.course.Stats = &domain.CourseStats{
		EnrollmentCount: enrollments,
		ReviewCount:     enrollments / 10,
		AverageRating:   rating,
		CompletionRate:  0.5,
	}
	return cb
}

func (cb *courseBuilder) Build() domain.Course {
	return cb.course.Clone()
}

func NewCourseBuilder(id string) *courseBuilder {
	return &courseBuilder{
		course: &domain.Course{
			ID:             id,
			Title:          fmt.Sprintf("Course %s", id),
			Category:       "general",
			InstructorID:   "instructor-1",
			InstructorName: "Ada Lovelace",
			Score:          4.5,
		},
	}
}

type instructorBuilder struct {
	instructor *domain.Instructor
}

func (ib *instructorBuilder) WithName(name string) *instructorBuilder {
	ib.instructor.Name = name
	return ib
}

func (ib *instructorBuilder) WithHeadline(headline string) *instructorBuilder {
	ib.instructor.Headline = headline
	return ib
}

func (ib *instructorBuilder) WithScore(score float64) *instructorBuilder {
	ib.instructor.Score = score
	return ib
}

func (ib *instructorBuilder) WithStats(courses, students int) *instructorBuilder {
	ib.instructor.Stats = &domain.InstructorStats{
		CourseCount:   courses,
		StudentCount:  students,
		ReviewCount:   students / 10,
		AverageRating: 4.2,
	}
	return ib
}

func (ib *instructorBuilder) Build() domain.Instructor {
	return ib.instructor.Clone()
}

func NewInstructorBuilder(id string) *instructorBuilder {
	return &instructorBuilder{
		instructor: &domain.Instructor{
			ID:       id,
			Name:     fmt.Sprintf("Instructor %s", id),
			Headline: "Educator",
			Score:    4.0,
		},
	}
}

// Courses builds n summary courses with ids prefix-0 .. prefix-(n-1)
func Courses(prefix string, n int) []domain.Course {
	courses := make([]domain.Course, n)
	for i := range n {
		courses[i] = NewCourseBuilder(fmt.Sprintf("%s-%d", prefix, i)).Build()
	}
	return courses
}

// Instructors builds n summary instructors with ids prefix-0 .. prefix-(n-1)
func Instructors(prefix string, n int) []domain.Instructor {
	instructors := make([]domain.Instructor, n)
	for i := range n {
		instructors[i] = NewInstructorBuilder(fmt.Sprintf("%s-%d", prefix, i)).Build()
	}
	return instructors
}

// Enrich returns detailed copies of the given summary courses
func Enrich(courses []domain.Course) []domain.Course {
	enriched := make([]domain.Course, len(courses))
	for i, course := range courses {
		course = course.Clone()
		course.Stats = &domain.CourseStats{
			EnrollmentCount: 100 * (i + 1),
			ReviewCount:     10 * (i + 1),
			AverageRating:   4.0,
			CompletionRate:  0.6,
		}
		enriched[i] = course
	}
	return enriched
}
