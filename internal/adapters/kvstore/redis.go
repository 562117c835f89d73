package kvstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Redis struct {
	client *redis.Client

	tracer trace.Tracer
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
		tracer: otel.Tracer("catalogcache/kvstore/redis"),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := r.tracer.Start(ctx, "Redis.Get")
	defer span.End()

	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := r.tracer.Start(ctx, "Redis.Set")
	defer span.End()

	// Expiry is decided by the entry itself, not by redis
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, span := r.tracer.Start(ctx, "Redis.Delete")
	defer span.End()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "Redis.Keys")
	defer span.End()

	keys := []string{}
	iter := r.client.Scan(ctx, 0, escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	// SCAN may return a key more than once
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func escapeGlob(pattern string) string {
	var escaped strings.Builder
	for _, char := range pattern {
		switch char {
		case '*', '?', '[', ']', '\\', '^':
			escaped.WriteRune('\\')
		}
		escaped.WriteRune(char)
	}
	return escaped.String()
}

var _ durablecache.KeyValueStore = (*Redis)(nil)
