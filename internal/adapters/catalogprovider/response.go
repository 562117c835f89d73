package catalogprovider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Amund211/catalogcache/internal/domain"
)

type apiCourseStats struct {
	Enrollments    int     `json:"enrollments"`
	Reviews        int     `json:"reviews"`
	AverageRating  float64 `json:"averageRating"`
	CompletionRate float64 `json:"completionRate"`
}

type apiInstructorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiCourse struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Category   string           `json:"category"`
	Instructor apiInstructorRef `json:"instructor"`
	Score      float64          `json:"score"`
	Stats      *apiCourseStats  `json:"stats,omitempty"`
}

type apiInstructorStats struct {
	Courses       int     `json:"courses"`
	Students      int     `json:"students"`
	Reviews       int     `json:"reviews"`
	AverageRating float64 `json:"averageRating"`
}

type apiInstructor struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Headline string              `json:"headline"`
	Score    float64             `json:"score"`
	Stats    *apiInstructorStats `json:"stats,omitempty"`
}

type apiCourseDetail struct {
	Course      apiCourse `json:"course"`
	Description string    `json:"description"`
	Syllabus    []string  `json:"syllabus"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type apiCatalogStats struct {
	Courses       int     `json:"courses"`
	Instructors   int     `json:"instructors"`
	Enrollments   int     `json:"enrollments"`
	AverageRating float64 `json:"averageRating"`
}

type apiResponse[T any] struct {
	Data  *T     `json:"data"`
	Cause string `json:"cause"`
}

func parseResponse[T any](statusCode int, data []byte) (T, error) {
	var empty T

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return empty, fmt.Errorf("%w: catalog API returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	case http.StatusNotFound:
		return empty, domain.ErrCourseNotFound
	}

	var response apiResponse[T]
	if err := json.Unmarshal(data, &response); err != nil {
		return empty, fmt.Errorf("failed to parse catalog response (status %d): %w", statusCode, err)
	}

	if statusCode != http.StatusOK {
		return empty, fmt.Errorf("catalog API returned status code %d: %s", statusCode, response.Cause)
	}

	if response.Data == nil {
		return empty, fmt.Errorf("catalog response is missing data")
	}

	return *response.Data, nil
}

func courseFromAPI(c apiCourse) (domain.Course, error) {
	id, err := domain.NormalizeID(c.ID)
	if err != nil {
		return domain.Course{}, fmt.Errorf("invalid course id from catalog API: %w", err)
	}

	course := domain.Course{
		ID:             id,
		Title:          c.Title,
		Category:       c.Category,
		InstructorID:   c.Instructor.ID,
		InstructorName: c.Instructor.Name,
		Score:          c.Score,
	}
	if c.Stats != nil {
		course.Stats = &domain.CourseStats{
			EnrollmentCount: c.Stats.Enrollments,
			ReviewCount:     c.Stats.Reviews,
			AverageRating:   c.Stats.AverageRating,
			CompletionRate:  c.Stats.CompletionRate,
		}
	}
	return course, nil
}

func coursesFromAPI(apiCourses []apiCourse) ([]domain.Course, error) {
	courses := make([]domain.Course, 0, len(apiCourses))
	for _, c := range apiCourses {
		course, err := courseFromAPI(c)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func instructorsFromAPI(apiInstructors []apiInstructor) ([]domain.Instructor, error) {
	instructors := make([]domain.Instructor, 0, len(apiInstructors))
	for _, i := range apiInstructors {
		id, err := domain.NormalizeID(i.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid instructor id from catalog API: %w", err)
		}

		instructor := domain.Instructor{
			ID:       id,
			Name:     i.Name,
			Headline: i.Headline,
			Score:    i.Score,
		}
		if i.Stats != nil {
			instructor.Stats = &domain.InstructorStats{
				CourseCount:   i.Stats.Courses,
				StudentCount:  i.Stats.Students,
				ReviewCount:   i.Stats.Reviews,
				AverageRating: i.Stats.AverageRating,
			}
		}
		instructors = append(instructors, instructor)
	}
	return instructors, nil
}

func courseDetailFromAPI(d apiCourseDetail) (domain.CourseDetail, error) {
	course, err := courseFromAPI(d.Course)
	if err != nil {
		return domain.CourseDetail{}, err
	}
	return domain.CourseDetail{
		Course:      course,
		Description: d.Description,
		Syllabus:    d.Syllabus,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func catalogStatsFromAPI(s apiCatalogStats, queriedAt time.Time) domain.CatalogStats {
	return domain.CatalogStats{
		CourseCount:     s.Courses,
		InstructorCount: s.Instructors,
		EnrollmentCount: s.Enrollments,
		AverageRating:   s.AverageRating,
		QueriedAt:       queriedAt,
	}
}
