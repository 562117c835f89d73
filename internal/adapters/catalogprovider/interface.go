package catalogprovider

import (
	"context"

	"github.com/Amund211/catalogcache/internal/domain"
)

// CatalogProvider is the remote source of catalog data.
// Implementations report their own errors.
type CatalogProvider interface {
	GetCourseRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Course, error)
	GetInstructorRanking(ctx context.Context, ranking domain.Ranking, limit int) ([]domain.Instructor, error)
	GetAllCourses(ctx context.Context) ([]domain.Course, error)
	GetAllInstructors(ctx context.Context) ([]domain.Instructor, error)
	GetCourseDetail(ctx context.Context, id string) (domain.CourseDetail, error)
	GetCatalogStats(ctx context.Context) (domain.CatalogStats, error)
}
