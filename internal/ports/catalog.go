package ports

import (
	"context"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/Amund211/catalogcache/internal/app"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/reporting"
)

const maxSearchTermLength = 100

type coursesResponse struct {
	Success bool             `json:"success"`
	Courses []courseResponse `json:"courses"`
}

type instructorsResponse struct {
	Success     bool                 `json:"success"`
	Instructors []instructorResponse `json:"instructors"`
}

// ListCourses returns one of the ranked course lists held by the aggregator
type ListCourses func(ctx context.Context) ([]domain.Course, error)

// ListInstructors returns one of the ranked instructor lists held by the aggregator
type ListInstructors func(ctx context.Context) ([]domain.Instructor, error)

func MakeListCoursesHandler(listCourses ListCourses, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := withUserMeta(r.Context(), r)

		courses, err := listCourses(ctx)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, coursesResponse{
			Success: true,
			Courses: coursesToResponse(courses),
		})
	}

	return middleware(handler)
}

func MakeListInstructorsHandler(listInstructors ListInstructors, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := withUserMeta(r.Context(), r)

		instructors, err := listInstructors(ctx)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, instructorsResponse{
			Success:     true,
			Instructors: instructorsToResponse(instructors),
		})
	}

	return middleware(handler)
}

func searchTerm(ctx context.Context, r *http.Request) (context.Context, string, bool) {
	term := r.URL.Query().Get("q")
	ctx = logging.AddMetaToContext(ctx, slog.String("term", term))
	ctx = reporting.AddExtrasToContext(ctx, map[string]string{"term": term})
	return ctx, term, utf8.RuneCountInString(term) <= maxSearchTermLength
}

func MakeSearchCoursesHandler(searchCourses app.SearchCourses, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, term, ok := searchTerm(withUserMeta(r.Context(), r), r)
		if !ok {
			writeError(ctx, w, "search term too long", http.StatusBadRequest)
			return
		}

		courses, err := searchCourses(ctx, term)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, coursesResponse{
			Success: true,
			Courses: coursesToResponse(courses),
		})
	}

	return middleware(handler)
}

func MakeSearchInstructorsHandler(searchInstructors app.SearchInstructors, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, term, ok := searchTerm(withUserMeta(r.Context(), r), r)
		if !ok {
			writeError(ctx, w, "search term too long", http.StatusBadRequest)
			return
		}

		instructors, err := searchInstructors(ctx, term)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, instructorsResponse{
			Success:     true,
			Instructors: instructorsToResponse(instructors),
		})
	}

	return middleware(handler)
}
