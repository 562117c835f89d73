package app

import (
	"context"
	"fmt"

	"github.com/Amund211/catalogcache/internal/adapters/catalogprovider"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/durablecache"
)

type GetCatalogStats func(ctx context.Context) (domain.CatalogStats, error)

func BuildGetCatalogStats(store *durablecache.Store, provider catalogprovider.CatalogProvider) GetCatalogStats {
	return func(ctx context.Context) (domain.CatalogStats, error) {
		if stats, ok := durablecache.Get[domain.CatalogStats](ctx, store, durablecache.CatalogStatsKey); ok {
			return stats, nil
		}

		stats, err := provider.GetCatalogStats(ctx)
		if err != nil {
			// NOTE: CatalogProvider implementations handle their own error reporting
			return domain.CatalogStats{}, fmt.Errorf("failed to get catalog stats: %w", err)
		}

		store.Set(context.WithoutCancel(ctx), durablecache.CatalogStatsKey, stats, durablecache.DefaultStatsTTL)

		return stats, nil
	}
}
