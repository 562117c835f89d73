package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/catalogcache/internal/adapters/cache"
	"github.com/Amund211/catalogcache/internal/adapters/catalogprovider"
	"github.com/Amund211/catalogcache/internal/adapters/kvstore"
	"github.com/Amund211/catalogcache/internal/aggregator"
	"github.com/Amund211/catalogcache/internal/app"
	"github.com/Amund211/catalogcache/internal/config"
	"github.com/Amund211/catalogcache/internal/domain"
	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/preload"
	"github.com/Amund211/catalogcache/internal/progressive"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the course catalog from the terminal.",
	Long: "Browse paints the course and instructor lists progressively: a summary first, " +
		"then the full catalog once it has loaded.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		term, _ := cmd.Flags().GetString("filter")
		warm, _ := cmd.Flags().GetBool("warm")
		verbose, _ := cmd.Flags().GetBool("verbose")

		env, closeEnv, err := newEnvironment(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer closeEnv()

		return browse(env.ctx, cmd.OutOrStdout(), env.agg, env.provider, term, warm)
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail [course id]",
	Short: "Show a course detail, prefetching it the way hovering a course card does.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		hover, _ := cmd.Flags().GetDuration("hover")

		env, closeEnv, err := newEnvironment(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer closeEnv()

		return showDetail(env.ctx, cmd.OutOrStdout(), env, args[0], hover)
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Log cache and loading activity to stderr")
	rootCmd.Flags().String("filter", "", "Only show entries matching this term")
	rootCmd.Flags().Bool("warm", false, "Load the summary lists before painting")
	detailCmd.Flags().Duration("hover", 500*time.Millisecond, "How long to hover the course before opening it")
	rootCmd.AddCommand(detailCmd)
}

type environment struct {
	ctx         context.Context
	store       *durablecache.Store
	provider    catalogprovider.CatalogProvider
	agg         *aggregator.Aggregator
	fetchDetail app.FetchCourseDetailWithCache
	getDetail   app.GetCourseDetail
}

func newEnvironment(ctx context.Context, verbose bool) (*environment, func(), error) {
	var handler slog.Handler = slog.NewTextHandler(io.Discard, nil)
	if verbose {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	ctx = logging.AddToContext(ctx, slog.New(handler))

	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	conf, err := config.ConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var kv durablecache.KeyValueStore = kvstore.NewMemory()
	closeKV := func() {}
	if conf.CacheBackend() == config.BackendSQLite {
		sqlite, err := kvstore.NewSQLite(conf.SQLitePath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache: %w", err)
		}
		kv = sqlite
		closeKV = func() { sqlite.Close() }
	}
	store := durablecache.New(kv, durablecache.WithPrefix(conf.CachePrefix()), durablecache.WithVersion(conf.CacheVersion()))

	provider, err := catalogprovider.NewCatalogAPIOrMock(conf, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		closeKV()
		return nil, nil, fmt.Errorf("failed to initialize catalog API: %w", err)
	}

	agg := aggregator.New(
		provider,
		aggregator.WithEssentialLimit(conf.EssentialLimit()),
		aggregator.WithDurableStore(store),
		aggregator.WithFullTierTTL(conf.FullTierTTL()),
	)

	detailMemo, stopDetailMemo := cache.NewTTLCache[domain.CourseDetail](time.Minute)
	fetchDetail := app.BuildFetchCourseDetailWithCache(detailMemo, provider)

	env := &environment{
		ctx:         ctx,
		store:       store,
		provider:    provider,
		agg:         agg,
		fetchDetail: fetchDetail,
		getDetail:   app.BuildGetCourseDetail(store, fetchDetail, durablecache.DefaultListTTL),
	}
	return env, func() {
		stopDetailMemo()
		closeKV()
	}, nil
}

func browse(ctx context.Context, out io.Writer, agg *aggregator.Aggregator, provider catalogprovider.CatalogProvider, term string, warm bool) error {
	if warm {
		if err := agg.LoadAll(ctx); err != nil {
			fmt.Fprintf(out, "summary lists unavailable: %v\n", err)
		}
	}

	courseRenderer := newRenderer(out, "courses", formatCourse)
	courses := progressive.NewController(
		progressive.NewCourseSource(agg, provider),
		progressive.WithOnChange(courseRenderer.render),
	)
	instructorRenderer := newRenderer(out, "instructors", formatInstructor)
	instructors := progressive.NewController(
		progressive.NewInstructorSource(agg, provider),
		progressive.WithOnChange(instructorRenderer.render),
	)

	courses.SetFilter(term)
	instructors.SetFilter(term)

	courseErr := courses.Start(ctx)
	instructorErr := instructors.Start(ctx)

	courses.Wait()
	instructors.Wait()

	if courseErr != nil && courses.Snapshot().Err != nil {
		return fmt.Errorf("failed to load courses: %w", courseErr)
	}
	if instructorErr != nil && instructors.Snapshot().Err != nil {
		return fmt.Errorf("failed to load instructors: %w", instructorErr)
	}
	return nil
}

func showDetail(ctx context.Context, out io.Writer, env *environment, rawID string, hover time.Duration) error {
	preloader := preload.New(env.store, env.fetchDetail)
	defer preloader.Close()

	if err := preloader.PointerEnter(ctx, rawID); err != nil {
		return err
	}
	select {
	case <-time.After(hover):
	case <-ctx.Done():
		return ctx.Err()
	}
	if preloader.PointerLeave(rawID) {
		fmt.Fprintln(out, "hover too short, no prefetch")
	}
	// Let a prefetch that already fired finish writing
	preloader.Close()

	detail, err := env.getDetail(ctx, rawID)
	if err != nil {
		return err
	}
	fmt.Fprint(out, formatDetail(detail))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
