package ports_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/catalogcache/internal/aggregator"
	"github.com/Amund211/catalogcache/internal/app"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/domaintest"
	"github.com/Amund211/catalogcache/internal/ports"
	"github.com/stretchr/testify/require"
)

func noopMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r)
	}
}

func requireJSONResponse(t *testing.T, w *httptest.ResponseRecorder, statusCode int, expectedJSON string) {
	t.Helper()
	require.Equal(t, statusCode, w.Code)
	require.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
	require.JSONEq(t, expectedJSON, w.Body.String())
}

const course0JSON = `{"id":"course-0","title":"Course course-0","category":"general","instructorId":"instructor-1","instructorName":"Ada Lovelace","score":4.5}`

func TestMakeListCoursesHandler(t *testing.T) {
	t.Parallel()

	t.Run("lists courses", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeListCoursesHandler(func(ctx context.Context) ([]domain.Course, error) {
			return domaintest.Courses("course", 1), nil
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/courses/popular", nil))

		requireJSONResponse(t, w, http.StatusOK, fmt.Sprintf(`{"success":true,"courses":[%s]}`, course0JSON))
	})

	t.Run("empty list is not null", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeListCoursesHandler(func(ctx context.Context) ([]domain.Course, error) {
			return nil, nil
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/courses/popular", nil))

		requireJSONResponse(t, w, http.StatusOK, `{"success":true,"courses":[]}`)
	})

	t.Run("stats are included when present", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeListCoursesHandler(func(ctx context.Context) ([]domain.Course, error) {
			return []domain.Course{domaintest.NewCourseBuilder("go-101").WithStats(200, 4.8).Build()}, nil
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/courses/top-rated", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"stats":{"enrollmentCount":200,"reviewCount":20,"averageRating":4.8,"completionRate":0.5}`)
	})

	for _, c := range []struct {
		name       string
		err        error
		statusCode int
		cause      string
	}{
		{"temporarily unavailable", fmt.Errorf("load failed: %w", domain.ErrTemporarilyUnavailable), http.StatusServiceUnavailable, "temporarily unavailable"},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, "request canceled"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	} {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			handler := ports.MakeListCoursesHandler(func(ctx context.Context) ([]domain.Course, error) {
				return nil, c.err
			}, noopMiddleware)

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest("GET", "/v1/courses/popular", nil))

			requireJSONResponse(t, w, c.statusCode, fmt.Sprintf(`{"success":false,"cause":"%s"}`, c.cause))
		})
	}
}

func TestMakeListInstructorsHandler(t *testing.T) {
	t.Parallel()

	agg := aggregator.New(domaintest.NewFakeCatalogProvider(
		domaintest.Courses("course", 3),
		domaintest.Instructors("instructor", 3),
	), aggregator.WithEssentialLimit(2))

	t.Run("popular", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeListInstructorsHandler(agg.PopularInstructors, noopMiddleware)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/instructors/popular", nil))

		requireJSONResponse(t, w, http.StatusOK, `{"success":true,"instructors":[
			{"id":"instructor-0","name":"Instructor instructor-0","headline":"Educator","score":4},
			{"id":"instructor-1","name":"Instructor instructor-1","headline":"Educator","score":4}
		]}`)
	})

	t.Run("top rated", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeListInstructorsHandler(agg.TopRatedInstructors, noopMiddleware)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/instructors/top-rated", nil))

		requireJSONResponse(t, w, http.StatusOK, `{"success":true,"instructors":[
			{"id":"instructor-2","name":"Instructor instructor-2","headline":"Educator","score":4},
			{"id":"instructor-1","name":"Instructor instructor-1","headline":"Educator","score":4}
		]}`)
	})
}

func TestMakeSearchHandlers(t *testing.T) {
	t.Parallel()

	courses := []domain.Course{
		domaintest.NewCourseBuilder("guitar").WithTitle("Guitarra para iniciantes").WithCategory("Música").WithStats(10, 4.1).Build(),
		domaintest.NewCourseBuilder("go").WithTitle("Concurrency in Go").WithCategory("Programming").WithStats(20, 4.9).Build(),
	}
	instructors := []domain.Instructor{
		domaintest.NewInstructorBuilder("ana").WithName("Ana Souza").WithStats(2, 300).Build(),
		domaintest.NewInstructorBuilder("rob").WithName("Rob Pike").WithHeadline("Gopher").WithStats(1, 900).Build(),
	}

	newAggregator := func() *aggregator.Aggregator {
		return aggregator.New(domaintest.NewFakeCatalogProvider(courses, instructors))
	}

	t.Run("courses are filtered by term", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeSearchCoursesHandler(app.BuildSearchCourses(newAggregator()), noopMiddleware)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/courses?q=M%C3%9ASICA", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		require.Contains(t, body, `"id":"guitar"`)
		require.NotContains(t, body, `"id":"go"`)
		require.Contains(t, body, `"stats":{`)
	})

	t.Run("empty term returns everything", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeSearchCoursesHandler(app.BuildSearchCourses(newAggregator()), noopMiddleware)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/courses", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"id":"guitar"`)
		require.Contains(t, w.Body.String(), `"id":"go"`)
	})

	t.Run("instructors are filtered by term", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeSearchInstructorsHandler(app.BuildSearchInstructors(newAggregator()), noopMiddleware)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/instructors?q=gopher", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"id":"rob"`)
		require.NotContains(t, w.Body.String(), `"id":"ana"`)
	})

	t.Run("too long terms are rejected", func(t *testing.T) {
		t.Parallel()

		called := false
		handler := ports.MakeSearchCoursesHandler(func(ctx context.Context, term string) ([]domain.Course, error) {
			called = true
			return nil, nil
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/courses?q="+strings.Repeat("a", 101), nil))

		requireJSONResponse(t, w, http.StatusBadRequest, `{"success":false,"cause":"search term too long"}`)
		require.False(t, called)
	})

	t.Run("load failures are surfaced", func(t *testing.T) {
		t.Parallel()

		provider := domaintest.NewFakeCatalogProvider(courses, instructors)
		provider.SetFullError(domain.ErrTemporarilyUnavailable)
		handler := ports.MakeSearchInstructorsHandler(app.BuildSearchInstructors(aggregator.New(provider)), noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/v1/instructors?q=a", nil))

		requireJSONResponse(t, w, http.StatusServiceUnavailable, `{"success":false,"cause":"temporarily unavailable"}`)
	})
}

func TestMakeCourseDetailHandler(t *testing.T) {
	t.Parallel()

	makeRequest := func(id string) *http.Request {
		req := httptest.NewRequest("GET", "/v1/courses/"+id, nil)
		req.SetPathValue("id", id)
		return req
	}

	detail := domain.CourseDetail{
		Course:      domaintest.Courses("course", 1)[0],
		Description: "All about it",
		Syllabus:    []string{"One", "Two"},
		UpdatedAt:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("returns the detail", func(t *testing.T) {
		t.Parallel()

		var requestedID string
		handler := ports.MakeCourseDetailHandler(func(ctx context.Context, id string) (domain.CourseDetail, error) {
			requestedID = id
			return detail, nil
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("Course-0"))

		requireJSONResponse(t, w, http.StatusOK, fmt.Sprintf(
			`{"success":true,"detail":{"course":%s,"description":"All about it","syllabus":["One","Two"],"updatedAt":"2024-01-01T00:00:00Z"}}`,
			course0JSON,
		))
		require.Equal(t, "course-0", requestedID)
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()

		called := false
		handler := ports.MakeCourseDetailHandler(func(ctx context.Context, id string) (domain.CourseDetail, error) {
			called = true
			return detail, nil
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("not%20valid"))

		requireJSONResponse(t, w, http.StatusBadRequest, `{"success":false,"cause":"invalid id"}`)
		require.False(t, called)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeCourseDetailHandler(func(ctx context.Context, id string) (domain.CourseDetail, error) {
			return domain.CourseDetail{}, fmt.Errorf("%w: %s", domain.ErrCourseNotFound, id)
		}, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("missing"))

		requireJSONResponse(t, w, http.StatusNotFound, `{"success":false,"cause":"not found"}`)
	})
}

func TestMakeCatalogStatsHandler(t *testing.T) {
	t.Parallel()

	handler := ports.MakeCatalogStatsHandler(func(ctx context.Context) (domain.CatalogStats, error) {
		return domain.CatalogStats{
			CourseCount:     48,
			InstructorCount: 12,
			EnrollmentCount: 1500,
			AverageRating:   4.25,
			QueriedAt:       time.Date(2024, time.March, 12, 12, 0, 0, 0, time.UTC),
		}, nil
	}, noopMiddleware)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/v1/stats", nil))

	requireJSONResponse(t, w, http.StatusOK, `{"success":true,"stats":{"courseCount":48,"instructorCount":12,"enrollmentCount":1500,"averageRating":4.25,"queriedAt":"2024-03-12T12:00:00Z"}}`)
}

func TestMakeStatusAndReloadHandlers(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 12, 12, 0, 0, 0, time.UTC)
	provider := domaintest.NewFakeCatalogProvider(domaintest.Courses("course", 3), domaintest.Instructors("instructor", 3))
	agg := aggregator.New(provider, aggregator.WithNowFunc(func() time.Time { return now }))

	statusHandler := ports.MakeStatusHandler(agg.Status, "1.0.0", noopMiddleware)
	reloadHandler := ports.MakeReloadHandler(agg.ForceReload, noopMiddleware)

	w := httptest.NewRecorder()
	statusHandler(w, httptest.NewRequest("GET", "/v1/status", nil))
	requireJSONResponse(t, w, http.StatusOK, `{"success":true,"essential":{"state":"idle"},"full":{"state":"idle"},"cacheVersion":"1.0.0"}`)

	w = httptest.NewRecorder()
	reloadHandler(w, httptest.NewRequest("POST", "/v1/reload", nil))
	requireJSONResponse(t, w, http.StatusOK, `{"success":true}`)
	require.True(t, agg.IsDataLoaded())

	w = httptest.NewRecorder()
	statusHandler(w, httptest.NewRequest("GET", "/v1/status", nil))
	requireJSONResponse(t, w, http.StatusOK, `{"success":true,"essential":{"state":"ready","loadedAt":"2024-03-12T12:00:00Z"},"full":{"state":"idle"},"cacheVersion":"1.0.0"}`)

	firstCalls := provider.RankingCalls.Load()
	w = httptest.NewRecorder()
	reloadHandler(w, httptest.NewRequest("POST", "/v1/reload", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2*firstCalls, provider.RankingCalls.Load())

	provider.SetRankingError(domain.ErrTemporarilyUnavailable)
	w = httptest.NewRecorder()
	reloadHandler(w, httptest.NewRequest("POST", "/v1/reload", nil))
	requireJSONResponse(t, w, http.StatusServiceUnavailable, `{"success":false,"cause":"temporarily unavailable"}`)

	w = httptest.NewRecorder()
	statusHandler(w, httptest.NewRequest("GET", "/v1/status", nil))
	require.Contains(t, w.Body.String(), `"essential":{"state":"failed"`)
	require.Contains(t, w.Body.String(), `"lastError":`)
}

type fakeIntentTracker struct {
	mutex   sync.Mutex
	entered []string
	left    []string
	pending map[string]bool
}

func newFakeIntentTracker() *fakeIntentTracker {
	return &fakeIntentTracker{pending: make(map[string]bool)}
}

func (f *fakeIntentTracker) PointerEnter(ctx context.Context, rawID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.entered = append(f.entered, rawID)
	f.pending[rawID] = true
	return nil
}

func (f *fakeIntentTracker) PointerLeave(rawID string) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.left = append(f.left, rawID)
	wasPending := f.pending[rawID]
	delete(f.pending, rawID)
	return wasPending
}

func TestMakeIntentHandler(t *testing.T) {
	t.Parallel()

	makeRequest := func(method string, id string) *http.Request {
		req := httptest.NewRequest(method, "/v1/courses/"+id+"/intent", nil)
		req.SetPathValue("id", id)
		return req
	}

	t.Run("enter then leave", func(t *testing.T) {
		t.Parallel()

		tracker := newFakeIntentTracker()
		handler := ports.MakeIntentHandler(tracker, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("PUT", "course-1"))
		requireJSONResponse(t, w, http.StatusAccepted, `{"success":true,"pending":true}`)

		w = httptest.NewRecorder()
		handler(w, makeRequest("DELETE", "course-1"))
		requireJSONResponse(t, w, http.StatusOK, `{"success":true,"pending":false,"canceled":true}`)

		w = httptest.NewRecorder()
		handler(w, makeRequest("DELETE", "course-1"))
		requireJSONResponse(t, w, http.StatusOK, `{"success":true,"pending":false}`)

		require.Equal(t, []string{"course-1"}, tracker.entered)
		require.Equal(t, []string{"course-1", "course-1"}, tracker.left)
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()

		tracker := newFakeIntentTracker()
		handler := ports.MakeIntentHandler(tracker, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("PUT", "a/b"))
		requireJSONResponse(t, w, http.StatusBadRequest, `{"success":false,"cause":"invalid id"}`)
		require.Empty(t, tracker.entered)
	})

	t.Run("other methods", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeIntentHandler(newFakeIntentTracker(), noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("POST", "course-1"))
		requireJSONResponse(t, w, http.StatusMethodNotAllowed, `{"success":false,"cause":"method not allowed"}`)
		require.Equal(t, "PUT, DELETE", w.Result().Header.Get("Allow"))
	})
}
