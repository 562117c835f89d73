package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/reporting"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeError(ctx context.Context, w http.ResponseWriter, cause string, statusCode int) {
	writeJSON(ctx, w, statusCode, errorResponse{Success: false, Cause: cause})
}

// writeDomainError maps errors from the app layer to a response.
// NOTE: The app layer and the catalog provider handle their own error reporting
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(ctx, w, "invalid id", http.StatusBadRequest)
	case errors.Is(err, domain.ErrCourseNotFound):
		writeError(ctx, w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		writeError(ctx, w, "temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logging.FromContext(ctx).InfoContext(ctx, "Request stopped before completion", slog.String("error", err.Error()))
		writeError(ctx, w, "request canceled", http.StatusServiceUnavailable)
	default:
		writeError(ctx, w, "internal server error", http.StatusInternalServerError)
	}
}

// withUserMeta attaches the user id header to the logger and the reporting scope
func withUserMeta(ctx context.Context, r *http.Request) context.Context {
	userID := r.Header.Get("X-User-Id")
	ctx = reporting.SetUserIDInContext(ctx, userID)
	if userID == "" {
		userID = "<missing>"
	}
	return logging.AddMetaToContext(ctx, slog.String("userId", userID))
}
