// Command reddit-scraper runs the Subreddit Scraper (C6) and User
// Scraper (C7) against the shared Postgres store, under the control
// plane's enable/disable switch.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/b9dashboard/social-ingest/internal/config"
	"github.com/b9dashboard/social-ingest/internal/control"
	"github.com/b9dashboard/social-ingest/internal/logging"
	"github.com/b9dashboard/social-ingest/internal/proxy"
	"github.com/b9dashboard/social-ingest/internal/reddit"
	"github.com/b9dashboard/social-ingest/internal/store"
)

const version = "0.1.0"

const (
	subredditScraperName = "reddit_subreddit_scraper"
	userScraperName      = "reddit_user_scraper"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reddit-scraper",
		Short: "Subreddit and user scraper for the Reddit ingestion pipeline",
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

// deps bundles what both serve and run-once need, built once per
// invocation from the environment.
type deps struct {
	env              *config.EnvConfig
	db               *store.Store
	logSink          io.Closer
	proxyPool        *proxy.Pool
	subredditScraper *reddit.SubredditScraper
	userScraper      *reddit.UserScraper
	subredditCfg     *config.Store
	userCfg          *config.Store
}

func bootstrap(ctx context.Context) (*deps, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	logging.Init(env.Environment, env.LogLevel, "reddit-scraper")

	db, err := store.Open(env.SupabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logSink := logging.Bootstrap(db, env.LogDir, "reddit-scraper")

	pool := proxy.New(db, proxy.NewHTTPProber())
	if n, err := pool.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("reddit-scraper: failed to load proxy pool, continuing with none")
	} else {
		log.Info().Int("loaded", n).Msg("reddit-scraper: proxy pool loaded")
		pool.TestAll(ctx)
		log.Info().Int("working", pool.WorkingCount()).Msg("reddit-scraper: proxy health sweep complete")
	}

	subredditCfg := config.NewStore(subredditScraperName, env, db, pool.WorkingCount)
	userCfg := config.NewStore(userScraperName, env, db, pool.WorkingCount)

	client := reddit.NewClient(pool, env.RedditMaxRetries)
	cache := reddit.NewCache(db)
	if err := cache.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("reddit-scraper: protected-field cache load failed, falling back to per-row lookups")
	}

	subredditScraper := reddit.NewSubredditScraper(client, db, cache, pool)
	userScraper := reddit.NewUserScraper(client, db, pool)

	return &deps{
		env:              env,
		db:               db,
		logSink:          logSink,
		proxyPool:        pool,
		subredditScraper: subredditScraper,
		userScraper:      userScraper,
		subredditCfg:     subredditCfg,
		userCfg:          userCfg,
	}, nil
}

func (d *deps) subredditOptions(ctx context.Context) reddit.SubredditScraperOptions {
	return reddit.SubredditScraperOptions{
		StalenessHours:    d.env.RedditStalenessHours,
		BatchSize:         d.subredditCfg.GetInt(ctx, config.KeyBatchSize),
		PostsPerSubreddit: d.subredditCfg.GetInt(ctx, config.KeyPostsPerSubreddit),
	}
}

func (d *deps) userOptions(ctx context.Context) reddit.UserScraperOptions {
	return reddit.UserScraperOptions{
		UserSubmissionsLimit: d.userCfg.GetInt(ctx, config.KeyUserSubmissionsLimit),
		BatchSize:            d.userCfg.GetInt(ctx, config.KeyUserBatchSize),
	}
}

func runOnceCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single scrape cycle and exit, bypassing the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			d, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer d.db.Close()
			defer d.logSink.Close()

			alwaysEnabled := func() bool { return true }

			switch target {
			case "subreddits":
				workers := clampWorkers(d.proxyPool.WorkingCount())
				return d.subredditScraper.RunCycle(ctx, d.subredditOptions(ctx), workers, alwaysEnabled)
			case "users":
				return d.userScraper.RunCycle(ctx, d.userOptions(ctx), alwaysEnabled)
			default:
				return fmt.Errorf("unknown --target %q (want subreddits or users)", target)
			}
		},
	}
	cmd.Flags().StringVar(&target, "target", "subreddits", "which working set to process: subreddits or users")
	return cmd
}

func serveCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
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

			switch target {
			case "subreddits":
				return serveSupervised(ctx, subredditScraperName, d, func(ctx context.Context, enabled func() bool) error {
					workers := clampWorkers(d.proxyPool.WorkingCount())
					return d.subredditScraper.RunCycle(ctx, d.subredditOptions(ctx), workers, enabled)
				})
			case "users":
				return serveSupervised(ctx, userScraperName, d, func(ctx context.Context, enabled func() bool) error {
					return d.userScraper.RunCycle(ctx, d.userOptions(ctx), enabled)
				})
			default:
				return fmt.Errorf("unknown --target %q (want subreddits or users)", target)
			}
		},
	}
	cmd.Flags().StringVar(&target, "target", "subreddits", "which working set to supervise: subreddits or users")
	return cmd
}

// serveSupervised idle-polls the control row until enabled, then hands
// the process to a Supervisor for the duration of the enabled window,
// repeating until ctx is cancelled (spec §4.5: idle <-> running driven
// entirely by the control row, not by process restarts).
func serveSupervised(ctx context.Context, name string, d *deps, cycle control.Cycle) error {
	sup := control.NewSupervisor(name, d.db, nil, cycle, time.Duration(d.env.RedditHeartbeatInterval)*time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		row, err := d.db.GetControlRow(ctx, name)
		if err != nil {
			log.Error().Err(err).Str("scraper", name).Msg("reddit-scraper: control row read failed, retrying")
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
			log.Error().Err(err).Str("scraper", name).Msg("reddit-scraper: supervised run exited with error")
		}
	}
}

func clampWorkers(working int) int {
	if working < 1 {
		return 1
	}
	if working > 9 {
		return 9
	}
	return working
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
