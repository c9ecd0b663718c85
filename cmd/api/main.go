// Command api runs the thin HTTP surface (C11): health/readiness
// probes, Prometheus metrics, and the supplemented on-demand/cron
// endpoints that front the scraper and categorizer binaries.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/b9dashboard/social-ingest/internal/api"
	"github.com/b9dashboard/social-ingest/internal/categorizer"
	"github.com/b9dashboard/social-ingest/internal/cleanup"
	"github.com/b9dashboard/social-ingest/internal/config"
	"github.com/b9dashboard/social-ingest/internal/logging"
	"github.com/b9dashboard/social-ingest/internal/proxy"
	"github.com/b9dashboard/social-ingest/internal/reddit"
	"github.com/b9dashboard/social-ingest/internal/store"

	"github.com/redis/go-redis/v9"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "api",
		Short: "HTTP API fronting the social ingestion pipeline",
	}
	root.AddCommand(serveCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment config: %w", err)
	}
	logging.Init(env.Environment, env.LogLevel, "api")

	db, err := store.Open(env.SupabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	defer logging.Bootstrap(db, env.LogDir, "api").Close()

	pool := proxy.New(db, proxy.NewHTTPProber())
	if _, err := pool.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("api: failed to load proxy pool, fetch-single will run without proxy rotation")
	} else {
		pool.TestAll(ctx)
	}

	redditClient := reddit.NewClient(pool, env.RedditMaxRetries)
	cache := reddit.NewCache(db)
	if err := cache.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("api: protected-field cache load failed, falling back to per-row lookups")
	}
	subredditScraper := reddit.NewSubredditScraper(redditClient, db, cache, pool)

	var lock cleanup.RunLock
	if env.RedisURL != "" {
		opts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("api: failed to parse REDIS_URL, log cleanup will run without a distributed lock")
		} else {
			lock = store.NewRedisLock(redis.NewClient(opts))
		}
	}
	cleaner := cleanup.New(db, lock)

	classifier := categorizer.NewOpenAIClassifier(env.OpenAIAPIKey, "")
	cat := categorizer.New(classifier.Classify, db, db)

	deps := &api.Deps{
		ServerName:  "social-ingest-api",
		LogDir:      env.LogDir,
		CronSecret:  env.CronSecret,
		DB:          db,
		Proxies:     pool,
		Subreddits:  subredditScraper,
		Creators:    db,
		Cleaner:     cleaner,
		Categorizer: cat,
		Jobs:        db,
		Control:     db,
	}

	if env.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:           ":" + env.Port,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", env.Port).Str("environment", env.Environment).Msg("api: starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	}
}
