package ports

import (
	"net/http"

	"github.com/Amund211/catalogcache/internal/app"
)

type catalogStatsEnvelope struct {
	Success bool                 `json:"success"`
	Stats   catalogStatsResponse `json:"stats"`
}

func MakeCatalogStatsHandler(getCatalogStats app.GetCatalogStats, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := withUserMeta(r.Context(), r)

		stats, err := getCatalogStats(ctx)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, catalogStatsEnvelope{
			Success: true,
			Stats:   catalogStatsToResponse(stats),
		})
	}

	return middleware(handler)
}
