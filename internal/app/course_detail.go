package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/catalogcache/internal/adapters/cache"
	"github.com/Amund211/catalogcache/internal/adapters/catalogprovider"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/Amund211/catalogcache/internal/logging"
)

// FetchCourseDetailWithCache fetches a course detail from the remote, sharing concurrent and recent fetches
type FetchCourseDetailWithCache func(ctx context.Context, id string) (domain.CourseDetail, error)

func BuildFetchCourseDetailWithCache(detailCache cache.Cache[domain.CourseDetail], provider catalogprovider.CatalogProvider) FetchCourseDetailWithCache {
	return func(ctx context.Context, id string) (domain.CourseDetail, error) {
		detail, _, err := cache.GetOrCreate(ctx, detailCache, id, func() (domain.CourseDetail, error) {
			return provider.GetCourseDetail(ctx, id)
		})
		if err != nil {
			// NOTE: CatalogProvider implementations handle their own error reporting
			return domain.CourseDetail{}, fmt.Errorf("failed to get course detail: %w", err)
		}

		return detail.Clone(), nil
	}
}

// GetCourseDetail lets the memoized fetch serve as a detail fetcher for the preloader
func (f FetchCourseDetailWithCache) GetCourseDetail(ctx context.Context, id string) (domain.CourseDetail, error) {
	return f(ctx, id)
}

type GetCourseDetail func(ctx context.Context, id string) (domain.CourseDetail, error)

// BuildGetCourseDetail reads course details through the durable store, so details prefetched on
// intent are served without a remote call
func BuildGetCourseDetail(store *durablecache.Store, fetch FetchCourseDetailWithCache, ttl time.Duration) GetCourseDetail {
	return func(ctx context.Context, rawID string) (domain.CourseDetail, error) {
		id, err := domain.NormalizeID(rawID)
		if err != nil {
			return domain.CourseDetail{}, err
		}

		logger := logging.FromContext(ctx)
		key := durablecache.CourseDetailKey(id)

		if detail, ok := durablecache.Get[domain.CourseDetail](ctx, store, key); ok {
			logger.InfoContext(ctx, "Getting course detail", "cache", "durable")
			return detail, nil
		}

		detail, err := fetch(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrCourseNotFound) {
				logger.WarnContext(ctx, "Failed to fetch course detail", "error", err.Error())
			}
			return domain.CourseDetail{}, err
		}

		// Persist even if the request was cancelled in the meantime
		store.Set(context.WithoutCancel(ctx), key, detail, ttl)

		return detail, nil
	}
}
