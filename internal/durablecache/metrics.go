package durablecache

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type durableCacheMetricsCollection struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
	writes metric.Int64Counter
	purges metric.Int64Counter
}

var metrics durableCacheMetricsCollection

func init() {
	const name = "catalogcache/durablecache"
	meter := otel.Meter(name)

	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			panic(fmt.Errorf("failed to create %s metric: %w", name, err))
		}
		return c
	}

	metrics = durableCacheMetricsCollection{
		hits:   counter("durablecache/hit_count", "Reads served from the durable cache"),
		misses: counter("durablecache/miss_count", "Reads that found no valid durable cache entry"),
		writes: counter("durablecache/write_count", "Entries written to the durable cache"),
		purges: counter("durablecache/purge_count", "Outdated, expired or corrupt entries removed"),
	}
}
