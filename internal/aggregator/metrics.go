package aggregator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type aggregatorMetricsCollection struct {
	fetchCount  metric.Int64Counter
	fetchErrors metric.Int64Counter
}

var metrics aggregatorMetricsCollection

func init() {
	meter := otel.Meter("catalogcache/aggregator")

	fetchCount, err := meter.Int64Counter("aggregator/fetch_count")
	if err != nil {
		panic(fmt.Errorf("failed to create fetch count metric: %w", err))
	}

	fetchErrors, err := meter.Int64Counter("aggregator/fetch_error_count")
	if err != nil {
		panic(fmt.Errorf("failed to create fetch error metric: %w", err))
	}

	metrics = aggregatorMetricsCollection{
		fetchCount:  fetchCount,
		fetchErrors: fetchErrors,
	}
}
