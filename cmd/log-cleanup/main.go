// Command log-cleanup runs the Log Cleanup job (C10) as a one-shot
// batch pass: aged system_logs rows and local log files past
// retention are deleted under a distributed lock. The same job is
// also reachable from cmd/api's POST /api/cron/cleanup-logs for
// cron-triggered runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/b9dashboard/social-ingest/internal/cleanup"
	"github.com/b9dashboard/social-ingest/internal/config"
	"github.com/b9dashboard/social-ingest/internal/logging"
	"github.com/b9dashboard/social-ingest/internal/store"
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
		Use:   "log-cleanup",
		Short: "Prunes aged database log rows and local log files",
	}
	root.AddCommand(runOnceCmd(), versionCmd())
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

func runOnceCmd() *cobra.Command {
	var retentionDays int
	var logDir string

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single cleanup pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			env, err := config.LoadEnv()
			if err != nil {
				return fmt.Errorf("failed to load environment config: %w", err)
			}
			logging.Init(env.Environment, env.LogLevel, "log-cleanup")

			db, err := store.Open(env.SupabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			defer logging.Bootstrap(db, logDir, "log-cleanup").Close()

			var lock cleanup.RunLock
			if env.RedisURL != "" {
				opts, err := redis.ParseURL(env.RedisURL)
				if err != nil {
					log.Warn().Err(err).Msg("log-cleanup: failed to parse REDIS_URL, running without a distributed lock")
				} else {
					lock = store.NewRedisLock(redis.NewClient(opts))
				}
			}

			cleaner := cleanup.New(db, lock)
			if retentionDays <= 0 {
				retentionDays = env.LogCleanupRetentionDays
			}

			result, err := cleaner.Run(ctx, logDir, retentionDays)
			if err != nil {
				return fmt.Errorf("cleanup run failed: %w", err)
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override the retention window in days (defaults to LOG_CLEANUP_RETENTION_DAYS)")
	cmd.Flags().StringVar(&logDir, "log-dir", "./logs", "local log directory to sweep")
	return cmd
}
