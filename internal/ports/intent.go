package ports

import (
	"context"
	"net/http"
)

type IntentTracker interface {
	PointerEnter(ctx context.Context, rawID string) error
	PointerLeave(rawID string) bool
}

type intentResponse struct {
	Success  bool `json:"success"`
	Pending  bool `json:"pending"`
	Canceled bool `json:"canceled,omitempty"`
}

// MakeIntentHandler exposes preload-on-intent. PUT signals interest in a course, DELETE withdraws it.
func MakeIntentHandler(tracker IntentTracker, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, id, err := courseIDFromPath(withUserMeta(r.Context(), r), r)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		switch r.Method {
		case http.MethodPut:
			if err := tracker.PointerEnter(ctx, id); err != nil {
				writeDomainError(ctx, w, err)
				return
			}
			writeJSON(ctx, w, http.StatusAccepted, intentResponse{Success: true, Pending: true})
		case http.MethodDelete:
			canceled := tracker.PointerLeave(id)
			writeJSON(ctx, w, http.StatusOK, intentResponse{Success: true, Pending: false, Canceled: canceled})
		default:
			w.Header().Set("Allow", "PUT, DELETE")
			writeError(ctx, w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}

	return middleware(handler)
}
