// Command instagram-scraper runs the Instagram Scraper (C8) against
// the shared Postgres store, under the control plane's enable/disable
// switch.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/b9dashboard/social-ingest/internal/config"
	"github.com/b9dashboard/social-ingest/internal/control"
	"github.com/b9dashboard/social-ingest/internal/instagram"
	"github.com/b9dashboard/social-ingest/internal/logging"
	"github.com/b9dashboard/social-ingest/internal/store"
)

const version = "0.1.0"

const scraperName = "instagram_scraper"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "instagram-scraper",
		Short: "Instagram creator scraper for the social ingestion pipeline",
	}
	root.AddCommand(serveCmd(), runOnceCmd(), versionCmd())
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

type deps struct {
	env     *config.EnvConfig
	db      *store.Store
	logSink io.Closer
	scraper *instagram.Scraper
}

func bootstrap(ctx context.Context) (*deps, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	logging.Init(env.Environment, env.LogLevel, "instagram-scraper")

	db, err := store.Open(env.SupabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logSink := logging.Bootstrap(db, env.LogDir, "instagram-scraper")

	limiter := newRateLimiter(env)
	client := instagram.NewClient(env.RapidAPIKey, env.RapidAPIHost, limiter)
	scraper := instagram.NewScraper(client, db, env.InstagramConcurrentCreators)

	return &deps{env: env, db: db, logSink: logSink, scraper: scraper}, nil
}

// newRateLimiter prefers the distributed Redis-backed bucket so every
// process sharing one RapidAPI key respects a single global budget;
// it falls back to an in-process limiter when REDIS_URL is unset
// (single-process deployments, local development).
func newRateLimiter(env *config.EnvConfig) instagram.RateLimiter {
	if env.RedisURL == "" {
		return instagram.NewLocalLimiter(float64(env.InstagramRequestsPerSecond))
	}
	opts, err := redis.ParseURL(env.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("instagram-scraper: failed to parse REDIS_URL, falling back to in-process rate limiter")
		return instagram.NewLocalLimiter(float64(env.InstagramRequestsPerSecond))
	}
	rdb := redis.NewClient(opts)
	return instagram.NewRedisLimiter(rdb, "instagram_rapidapi", float64(env.InstagramRequestsPerSecond))
}

func runOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single scrape cycle over the enabled creator set and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			d, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer d.db.Close()
			defer d.logSink.Close()

			return d.scraper.RunCycle(ctx, func() bool { return true })
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run continuously under the control plane's enable/disable switch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			d, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer d.db.Close()
			defer d.logSink.Close()

			sup := control.NewSupervisor(scraperName, d.db, nil, d.scraper.RunCycle, 30*time.Second)

			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				row, err := d.db.GetControlRow(ctx, scraperName)
				if err != nil {
					log.Error().Err(err).Msg("instagram-scraper: control row read failed, retrying")
					if !sleepCtx(ctx, 5*time.Second) {
						return nil
					}
					continue
				}
				if !row.Enabled {
					if !sleepCtx(ctx, 5*time.Second) {
						return nil
					}
					continue
				}

				if err := sup.Run(ctx); err != nil {
					log.Error().Err(err).Msg("instagram-scraper: supervised run exited with error")
				}
			}
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
