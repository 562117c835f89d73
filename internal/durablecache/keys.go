package durablecache

const (
	EssentialSnapshotKey = "aggregator_essential"
	FullSnapshotKey      = "aggregator_full"
	CatalogStatsKey      = "catalog_stats"
)

func CourseDetailKey(id string) string { return "course_detail_" + id }
