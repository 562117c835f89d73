package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/progressive"
)

type renderer[T any] struct {
	mutex  sync.Mutex
	out    io.Writer
	title  string
	format func(T) string
	last   string
}

func newRenderer[T any](out io.Writer, title string, format func(T) string) *renderer[T] {
	return &renderer[T]{out: out, title: title, format: format}
}

// render prints a snapshot unless it renders identically to the previous one
func (r *renderer[T]) render(snapshot progressive.Snapshot[T]) {
	text := formatSnapshot(r.title, snapshot, r.format)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if text == r.last {
		return
	}
	r.last = text
	fmt.Fprint(r.out, text)
}

func phase[T any](snapshot progressive.Snapshot[T]) string {
	switch {
	case snapshot.Err != nil:
		return "error"
	case snapshot.Loading:
		return "loading"
	case snapshot.Enriched:
		return "full"
	default:
		return "summary"
	}
}

func formatSnapshot[T any](title string, snapshot progressive.Snapshot[T], format func(T) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s [%s] %d/%d", title, phase(snapshot), len(snapshot.Filtered), len(snapshot.Items))
	if snapshot.Filter != "" {
		fmt.Fprintf(&b, " filter=%q", snapshot.Filter)
	}
	b.WriteString("\n")

	if snapshot.Err != nil {
		fmt.Fprintf(&b, "   %v\n", snapshot.Err)
		return b.String()
	}
	for _, item := range snapshot.Filtered {
		fmt.Fprintf(&b, "   %s\n", format(item))
	}
	return b.String()
}

func formatCourse(course domain.Course) string {
	line := fmt.Sprintf("%-24s %s (%s) by %s", course.ID, course.Title, course.Category, course.InstructorName)
	if course.Stats != nil {
		line += fmt.Sprintf(" - %d enrolled, %.1f stars", course.Stats.EnrollmentCount, course.Stats.AverageRating)
	}
	return line
}

func formatInstructor(instructor domain.Instructor) string {
	line := fmt.Sprintf("%-24s %s", instructor.ID, instructor.Name)
	if instructor.Headline != "" {
		line += fmt.Sprintf(", %s", instructor.Headline)
	}
	if instructor.Stats != nil {
		line += fmt.Sprintf(" - %d courses, %d students", instructor.Stats.CourseCount, instructor.Stats.StudentCount)
	}
	return line
}

func formatDetail(detail domain.CourseDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", formatCourse(detail.Course))
	fmt.Fprintf(&b, "updated %s\n\n%s\n", detail.UpdatedAt.Format("2006-01-02"), detail.Description)
	for i, item := range detail.Syllabus {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, item)
	}
	return b.String()
}
