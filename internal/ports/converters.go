package ports

import (
	"time"

	"github.com/Amund211/catalogcache/internal/aggregator"
	"github.com/Amund211/catalogcache/internal/domain"
)

type courseStatsResponse struct {
	EnrollmentCount int     `json:"enrollmentCount"`
	ReviewCount     int     `json:"reviewCount"`
	AverageRating   float64 `json:"averageRating"`
	CompletionRate  float64 `json:"completionRate"`
}

type courseResponse struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Category       string               `json:"category"`
	InstructorID   string               `json:"instructorId"`
	InstructorName string               `json:"instructorName"`
	Score          float64              `json:"score"`
	Stats          *courseStatsResponse `json:"stats,omitempty"`
}

type instructorStatsResponse struct {
	CourseCount   int     `json:"courseCount"`
	StudentCount  int     `json:"studentCount"`
	ReviewCount   int     `json:"reviewCount"`
	AverageRating float64 `json:"averageRating"`
}

type instructorResponse struct {
	ID       string                   `json:"id"`
	Name     string                   `json:"name"`
	Headline string                   `json:"headline"`
	Score    float64                  `json:"score"`
	Stats    *instructorStatsResponse `json:"stats,omitempty"`
}

type courseDetailResponse struct {
	Course      courseResponse `json:"course"`
	Description string         `json:"description"`
	Syllabus    []string       `json:"syllabus"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type catalogStatsResponse struct {
	CourseCount     int       `json:"courseCount"`
	InstructorCount int       `json:"instructorCount"`
	EnrollmentCount int       `json:"enrollmentCount"`
	AverageRating   float64   `json:"averageRating"`
	QueriedAt       time.Time `json:"queriedAt"`
}

type tierStatusResponse struct {
	State     string     `json:"state"`
	LoadedAt  *time.Time `json:"loadedAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

func courseToResponse(course domain.Course) courseResponse {
	resp := courseResponse{
		ID:             course.ID,
		Title:          course.Title,
		Category:       course.Category,
		InstructorID:   course.InstructorID,
		InstructorName: course.InstructorName,
		Score:          course.Score,
	}
	if course.Stats != nil {
		resp.Stats = &courseStatsResponse{
			EnrollmentCount: course.Stats.EnrollmentCount,
			ReviewCount:     course.Stats.ReviewCount,
			AverageRating:   course.Stats.AverageRating,
			CompletionRate:  course.Stats.CompletionRate,
		}
	}
	return resp
}

func coursesToResponse(courses []domain.Course) []courseResponse {
	resp := make([]courseResponse, 0, len(courses))
	for _, course := range courses {
		resp = append(resp, courseToResponse(course))
	}
	return resp
}

func instructorToResponse(instructor domain.Instructor) instructorResponse {
	resp := instructorResponse{
		ID:       instructor.ID,
		Name:     instructor.Name,
		Headline: instructor.Headline,
		Score:    instructor.Score,
	}
	if instructor.Stats != nil {
		resp.Stats = &instructorStatsResponse{
			CourseCount:   instructor.Stats.CourseCount,
			StudentCount:  instructor.Stats.StudentCount,
			ReviewCount:   instructor.Stats.ReviewCount,
			AverageRating: instructor.Stats.AverageRating,
		}
	}
	return resp
}

func instructorsToResponse(instructors []domain.Instructor) []instructorResponse {
	resp := make([]instructorResponse, 0, len(instructors))
	for _, instructor := range instructors {
		resp = append(resp, instructorToResponse(instructor))
	}
	return resp
}

func courseDetailToResponse(detail domain.CourseDetail) courseDetailResponse {
	syllabus := detail.Syllabus
	if syllabus == nil {
		syllabus = []string{}
	}
	return courseDetailResponse{
		Course:      courseToResponse(detail.Course),
		Description: detail.Description,
		Syllabus:    syllabus,
		UpdatedAt:   detail.UpdatedAt,
	}
}

func catalogStatsToResponse(stats domain.CatalogStats) catalogStatsResponse {
	return catalogStatsResponse(stats)
}

func tierStatusToResponse(status aggregator.TierStatus) tierStatusResponse {
	resp := tierStatusResponse{
		State:     status.State,
		LastError: status.LastError,
	}
	if !status.LoadedAt.IsZero() {
		loadedAt := status.LoadedAt
		resp.LoadedAt = &loadedAt
	}
	return resp
}
