package ports

import (
	"context"
	"net/http"
)

type Reload func(ctx context.Context) error

func MakeReloadHandler(reload Reload, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := withUserMeta(r.Context(), r)

		err := reload(ctx)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, struct {
			Success bool `json:"success"`
		}{Success: true})
	}

	return middleware(handler)
}
