package ports

import (
	"net/http"

	"github.com/Amund211/catalogcache/internal/aggregator"
)

type statusEnvelope struct {
	Success      bool               `json:"success"`
	Essential    tierStatusResponse `json:"essential"`
	Full         tierStatusResponse `json:"full"`
	CacheVersion string             `json:"cacheVersion"`
}

func MakeStatusHandler(getStatus func() aggregator.Status, cacheVersion string, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := getStatus()

		writeJSON(ctx, w, http.StatusOK, statusEnvelope{
			Success:      true,
			Essential:    tierStatusToResponse(status.Essential),
			Full:         tierStatusToResponse(status.Full),
			CacheVersion: cacheVersion,
		})
	}

	return middleware(handler)
}
