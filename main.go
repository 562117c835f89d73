package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/catalogcache/internal/adapters/cache"
	"github.com/Amund211/catalogcache/internal/adapters/catalogprovider"
	"github.com/Amund211/catalogcache/internal/adapters/database"
	"github.com/Amund211/catalogcache/internal/adapters/kvstore"
	"github.com/Amund211/catalogcache/internal/aggregator"
	"github.com/Amund211/catalogcache/internal/app"
	"github.com/Amund211/catalogcache/internal/config"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/ports"
	"github.com/Amund211/catalogcache/internal/preload"
	"github.com/Amund211/catalogcache/internal/ratelimiting"
	"github.com/Amund211/catalogcache/internal/reporting"
	"github.com/Amund211/catalogcache/internal/telemetry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "catalogcache"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.New().String()
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		bootLogger.Error(msg, args...)
		os.Exit(1)
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fail("Failed to load .env file", "error", err.Error())
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	logger := slog.New(
		logging.NewGoogleCloudTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil), config.GoogleCloudProject()),
	).With("instanceID", instanceID)
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if config.TelemetryEnabled() {
		shutdownTelemetry, err := telemetry.SetupOTelSDK(ctx, serviceName, 1.0/100.0)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	kv, closeKV, err := newKeyValueStore(ctx, config, logger)
	if err != nil {
		fail("Failed to initialize cache backend", "error", err.Error(), "backend", string(config.CacheBackend()))
	}
	defer closeKV()
	logger.Info("Initialized cache backend", "backend", string(config.CacheBackend()))

	store := durablecache.New(
		kv,
		durablecache.WithPrefix(config.CachePrefix()),
		durablecache.WithVersion(config.CacheVersion()),
	)
	backgroundCtx := reporting.WithBackgroundHub(logging.AddToContext(ctx, logger.With("component", "background")), "background")
	stopCleanup := store.StartCleanup(backgroundCtx, durablecache.DefaultCleanupInterval)
	defer stopCleanup()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	catalogProvider, err := catalogprovider.NewCatalogAPIOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize catalog API", "error", err.Error())
	}
	logger.Info("Initialized catalog API")

	agg := aggregator.New(
		catalogProvider,
		aggregator.WithEssentialLimit(config.EssentialLimit()),
		aggregator.WithDurableStore(store),
		aggregator.WithFullTierTTL(config.FullTierTTL()),
	)

	// Warm the essential tier so the first requests paint instantly
	go func() {
		if err := agg.LoadAll(backgroundCtx); err != nil {
			logger.Warn("Initial catalog load failed", "error", err.Error())
		}
	}()

	detailCache, stopDetailCache := cache.NewTTLCache[domain.CourseDetail](1 * time.Minute)
	defer stopDetailCache()
	fetchCourseDetailWithCache := app.BuildFetchCourseDetailWithCache(detailCache, catalogProvider)
	getCourseDetail := app.BuildGetCourseDetail(store, fetchCourseDetailWithCache, durablecache.DefaultListTTL)
	getCatalogStats := app.BuildGetCatalogStats(store, catalogProvider)
	searchCourses := app.BuildSearchCourses(agg)
	searchInstructors := app.BuildSearchInstructors(agg)

	preloader := preload.New(store, fetchCourseDetailWithCache)
	defer preloader.Close()

	allowedOrigins, err := ports.NewAllowedOrigins(config.IsDevelopment(), config.CORSOriginSuffixes()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	limits, stopLimits := ports.NewRequestLimits(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(120),
	)
	defer stopLimits()

	middleware := ports.NewMiddlewareFactory(logger, sentryMiddleware, allowedOrigins, limits)

	mux := http.NewServeMux()

	mux.HandleFunc("OPTIONS /v1/", ports.BuildCORSHandler(allowedOrigins))

	mux.HandleFunc("GET /v1/courses/popular", ports.MakeListCoursesHandler(agg.PopularCourses, middleware("popularcourses")))
	mux.HandleFunc("GET /v1/courses/top-rated", ports.MakeListCoursesHandler(agg.TopRatedCourses, middleware("topratedcourses")))
	mux.HandleFunc("GET /v1/instructors/popular", ports.MakeListInstructorsHandler(agg.PopularInstructors, middleware("popularinstructors")))
	mux.HandleFunc("GET /v1/instructors/top-rated", ports.MakeListInstructorsHandler(agg.TopRatedInstructors, middleware("topratedinstructors")))

	mux.HandleFunc("GET /v1/courses", ports.MakeSearchCoursesHandler(searchCourses, middleware("searchcourses")))
	mux.HandleFunc("GET /v1/instructors", ports.MakeSearchInstructorsHandler(searchInstructors, middleware("searchinstructors")))

	mux.HandleFunc("GET /v1/courses/{id}", ports.MakeCourseDetailHandler(getCourseDetail, middleware("coursedetail")))

	intentHandler := ports.MakeIntentHandler(preloader, middleware("intent"))
	mux.HandleFunc("PUT /v1/courses/{id}/intent", intentHandler)
	mux.HandleFunc("DELETE /v1/courses/{id}/intent", intentHandler)

	mux.HandleFunc("GET /v1/stats", ports.MakeCatalogStatsHandler(getCatalogStats, middleware("stats")))
	mux.HandleFunc("GET /v1/status", ports.MakeStatusHandler(agg.Status, store.Version(), middleware("status")))
	mux.HandleFunc("POST /v1/reload", ports.MakeReloadHandler(agg.ForceReload, middleware("reload")))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}

func newKeyValueStore(ctx context.Context, conf config.Config, logger *slog.Logger) (durablecache.KeyValueStore, func(), error) {
	switch conf.CacheBackend() {
	case config.BackendMemory:
		return kvstore.NewMemory(), func() {}, nil
	case config.BackendSQLite:
		store, err := kvstore.NewSQLite(conf.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.BackendPostgres:
		db, err := database.NewCloudsqlPostgresDatabase(conf)
		if err != nil {
			return nil, nil, err
		}
		schemaName := database.GetSchemaName(!conf.IsProduction())
		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return kvstore.NewPostgres(db, schemaName), func() { db.Close() }, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: conf.RedisAddr()})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return kvstore.NewRedis(client), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend: %s", conf.CacheBackend())
}
