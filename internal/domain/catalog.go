package domain

import (
	"slices"
	"time"
)

type Ranking string

const (
	RankingPopular  Ranking = "popular"
	RankingTopRated Ranking = "top-rated"
)

type CourseStats struct {
	EnrollmentCount int
	ReviewCount     int
	AverageRating   float64
	CompletionRate  float64
}

// Course is a catalog entry. Summary records from the ranking endpoints have Stats == nil,
// records from the full listing carry their detailed stats.
type Course struct {
	ID             string
	Title          string
	Category       string
	InstructorID   string
	InstructorName string
	Score          float64

	Stats *CourseStats
}

// Clone returns a copy that shares no memory with c
func (c Course) Clone() Course {
	if c.Stats != nil {
		stats := *c.Stats
		c.Stats = &stats
	}
	return c
}

type InstructorStats struct {
	CourseCount   int
	StudentCount  int
	ReviewCount   int
	AverageRating float64
}

type Instructor struct {
	ID       string
	Name     string
	Headline string
	Score    float64

	Stats *InstructorStats
}

// Clone returns a copy that shares no memory with i
func (i Instructor) Clone() Instructor {
	if i.Stats != nil {
		stats := *i.Stats
		i.Stats = &stats
	}
	return i
}

type CourseDetail struct {
	Course      Course
	Description string
	Syllabus    []string
	UpdatedAt   time.Time
}

func (d CourseDetail) Clone() CourseDetail {
	d.Course = d.Course.Clone()
	d.Syllabus = slices.Clone(d.Syllabus)
	return d
}

type CatalogStats struct {
	CourseCount     int
	InstructorCount int
	EnrollmentCount int
	AverageRating   float64
	QueriedAt       time.Time
}

func CloneCourses(courses []Course) []Course {
	if courses == nil {
		return nil
	}
	cloned := make([]Course, len(courses))
	for i, course := range courses {
		cloned[i] = course.Clone()
	}
	return cloned
}

func CloneInstructors(instructors []Instructor) []Instructor {
	if instructors == nil {
		return nil
	}
	cloned := make([]Instructor, len(instructors))
	for i, instructor := range instructors {
		cloned[i] = instructor.Clone()
	}
	return cloned
}
