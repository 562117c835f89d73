package ports

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type portsMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

var metrics portsMetricsCollection

func init() {
	const name = "catalogcache/ports"
	meter := otel.Meter(name)

	requestCount, err := meter.Int64Counter(
		"ports/catalog_request_count",
		metric.WithDescription("Total number of catalog requests received, by port and status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request count metric: %w", err))
	}

	requestDuration, err := meter.Float64Histogram(
		"ports/catalog_request_duration_seconds",
		metric.WithDescription("Processing time for received requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request duration metric: %w", err))
	}

	metrics = portsMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}
}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func buildMetricsMiddleware(portName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			// NOTE: Potentially high cardinality label
			userId := r.Header.Get("X-User-Id")
			if userId == "" {
				userId = "<missing>"
			}

			recorder := &statusRecorder{ResponseWriter: w}
			next(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}

			// The path carries course ids, so requests are grouped by port instead
			attributesOption := metric.WithAttributes(
				attribute.String("port", portName),
				attribute.String("method", r.Method),
				attribute.Int("status", status),
				attribute.String("user_id", userId),
			)

			metrics.requestCount.Add(ctx, 1, attributesOption)
			metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attributesOption)
		}
	}
}
