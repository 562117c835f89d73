package ports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Amund211/catalogcache/internal/app"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/reporting"
)

type courseDetailEnvelope struct {
	Success bool                 `json:"success"`
	Detail  courseDetailResponse `json:"detail"`
}

// courseIDFromPath validates the {id} path value and attaches it to the logger and reporting scope
func courseIDFromPath(ctx context.Context, r *http.Request) (context.Context, string, error) {
	rawID := r.PathValue("id")
	id, err := domain.NormalizeID(rawID)
	if err != nil {
		return ctx, "", err
	}
	ctx = logging.AddMetaToContext(ctx, slog.String("courseId", id))
	ctx = reporting.AddExtrasToContext(ctx, map[string]string{"courseId": id})
	return ctx, id, nil
}

func MakeCourseDetailHandler(getCourseDetail app.GetCourseDetail, middleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, id, err := courseIDFromPath(withUserMeta(r.Context(), r), r)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		detail, err := getCourseDetail(ctx, id)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, courseDetailEnvelope{
			Success: true,
			Detail:  courseDetailToResponse(detail),
		})
	}

	return middleware(handler)
}
