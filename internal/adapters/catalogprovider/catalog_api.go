package catalogprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/catalogcache/internal/config"
	"github.com/Amund211/catalogcache/internal/constants"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/ratelimiting"
	"github.com/Amund211/catalogcache/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const maxOperationTime = 5 * time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type RequestLimiter interface {
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool
}

type catalogAPIMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupCatalogAPIMetrics(meter metric.Meter) (catalogAPIMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("catalogprovider/catalog_api/request_count")
	if err != nil {
		return catalogAPIMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return catalogAPIMetricsCollection{
		requestCount: requestCount,
	}, nil
}

type catalogAPI struct {
	httpClient HttpClient
	baseURL    string
	apiKey     string
	limiter    RequestLimiter
	nowFunc    func() time.Time

	metrics catalogAPIMetricsCollection
	tracer  trace.Tracer
}

func NewCatalogAPI(
	httpClient HttpClient,
	baseURL string,
	apiKey string,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (*catalogAPI, error) {
	const name = "catalogcache/catalogprovider/catalog_api"

	metrics, err := setupCatalogAPIMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &catalogAPI{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    ratelimiting.NewWindowLimiter(300, time.Minute, nowFunc, afterFunc),
		nowFunc:    nowFunc,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

// NewCatalogAPIOrMock returns the real catalog API when configured, and a deterministic mock in development
func NewCatalogAPIOrMock(conf config.Config, httpClient HttpClient) (CatalogProvider, error) {
	if conf.CatalogAPIURL() != "" {
		return NewCatalogAPI(httpClient, conf.CatalogAPIURL(), conf.CatalogAPIKey(), time.Now, time.After)
	}
	if conf.IsDevelopment() {
		return NewMockedCatalogProvider(time.Now), nil
	}
	return nil, fmt.Errorf("missing catalog API url in non-development environment")
}

func rankingQuery(ranking domain.Ranking, limit int) string {
	query := url.Values{}
	query.Set("sort", string(ranking))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return query.Encode()
}

func (c *catalogAPI) GetCourseRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Course, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogAPI.GetCourseRanking", trace.WithAttributes(attribute.String("ranking", string(ranking))))
	defer span.End()

	return getList(ctx, c, "/v1/courses?"+rankingQuery(ranking, limit), coursesFromAPI)
}

func (c *catalogAPI) GetInstructorRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Instructor, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogAPI.GetInstructorRanking", trace.WithAttributes(attribute.String("ranking", string(ranking))))
	defer span.End()

	return getList(ctx, c, "/v1/instructors?"+rankingQuery(ranking, limit), instructorsFromAPI)
}

func (c *catalogAPI) GetAllCourses(ctx context.Context) ([]domain.Course, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogAPI.GetAllCourses")
	defer span.End()

	return getList(ctx, c, "/v1/courses?include=stats", coursesFromAPI)
}

func (c *catalogAPI) GetAllInstructors(ctx context.Context) ([]domain.Instructor, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogAPI.GetAllInstructors")
	defer span.End()

	return getList(ctx, c, "/v1/instructors?include=stats", instructorsFromAPI)
}

func (c *catalogAPI) GetCourseDetail(ctx context.Context, id string) (domain.CourseDetail, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogAPI.GetCourseDetail")
	defer span.End()

	normalizedID, err := domain.NormalizeID(id)
	if err != nil {
		return domain.CourseDetail{}, err
	}

	statusCode, data, err := c.get(ctx, "/v1/courses/"+url.PathEscape(normalizedID))
	if err != nil {
		return domain.CourseDetail{}, err
	}

	response, err := parseResponse[apiCourseDetail](statusCode, data)
	if errors.Is(err, domain.ErrCourseNotFound) {
		// Pass through error but don't report
		return domain.CourseDetail{}, err
	}
	if err != nil {
		return domain.CourseDetail{}, c.responseError(ctx, err, statusCode, data)
	}

	detail, err := courseDetailFromAPI(response)
	if err != nil {
		return domain.CourseDetail{}, c.responseError(ctx, err, statusCode, data)
	}
	return detail, nil
}

func (c *catalogAPI) GetCatalogStats(ctx context.Context) (domain.CatalogStats, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogAPI.GetCatalogStats")
	defer span.End()

	statusCode, data, err := c.get(ctx, "/v1/stats")
	if err != nil {
		return domain.CatalogStats{}, err
	}
	queriedAt := c.nowFunc()

	response, err := parseResponse[apiCatalogStats](statusCode, data)
	if err != nil {
		return domain.CatalogStats{}, c.responseError(ctx, err, statusCode, data)
	}

	return catalogStatsFromAPI(response, queriedAt), nil
}

func getList[A any, T any](ctx context.Context, c *catalogAPI, path string, convert func([]A) ([]T, error)) ([]T, error) {
	statusCode, data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	response, err := parseResponse[[]A](statusCode, data)
	if err != nil {
		return nil, c.responseError(ctx, err, statusCode, data)
	}

	items, err := convert(response)
	if err != nil {
		return nil, c.responseError(ctx, err, statusCode, data)
	}
	return items, nil
}

func (c *catalogAPI) responseError(ctx context.Context, err error, statusCode int, data []byte) error {
	err = fmt.Errorf("failed to parse catalog response: %w", err)
	if errors.Is(err, domain.ErrTemporarilyUnavailable) {
		logging.FromContext(ctx).WarnContext(ctx, "Catalog API temporarily unavailable", "status", statusCode)
		return err
	}
	reporting.Report(ctx, err, map[string]string{
		"data":   string(data),
		"status": strconv.Itoa(statusCode),
	})
	return err
}

func (c *catalogAPI) get(ctx context.Context, path string) (int, []byte, error) {
	requestURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return 0, nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	if c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}

	var statusCode int
	var data []byte
	start := c.nowFunc()
	ran := c.limiter.Limit(ctx, maxOperationTime, func(ctx context.Context) {
		ctx, span := c.tracer.Start(ctx, "CatalogAPI.httpget")
		defer span.End()

		var resp *http.Response
		resp, err = c.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("failed to send request: %w", err)
			reporting.Report(ctx, err)
			return
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
			reporting.Report(ctx, err)
			return
		}
	})
	if !ran {
		logging.FromContext(ctx).WarnContext(ctx, "Did not call catalog API due to rate limiting", "path", path, "ctx_error", ctx.Err())
		return 0, nil, fmt.Errorf("%w: too many requests to catalog API", domain.ErrTemporarilyUnavailable)
	}
	if err != nil {
		return 0, nil, err
	}

	c.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("status_code", strconv.Itoa(statusCode))))
	logging.FromContext(ctx).InfoContext(ctx, "Catalog request completed", "path", path, "status", statusCode, "duration", c.nowFunc().Sub(start).String())

	return statusCode, data, nil
}
