// Command categorizer runs the Categorizer (C9) as a one-shot batch
// job, assigning tags to approved-but-untagged subreddits via an
// OpenAI classifier. The same batch logic is also reachable from
// cmd/api's POST /api/categorization/start for HTTP-triggered runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/b9dashboard/social-ingest/internal/categorizer"
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
		Use:   "categorizer",
		Short: "Assigns tags to approved subreddits from the fixed registry",
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
	var batchSize, limit int
	var force bool
	var idsCSV string

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Categorize one batch of untagged subreddits and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			env, err := config.LoadEnv()
			if err != nil {
				return fmt.Errorf("failed to load environment config: %w", err)
			}
			logging.Init(env.Environment, env.LogLevel, "categorizer")

			db, err := store.Open(env.SupabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			defer logging.Bootstrap(db, env.LogDir, "categorizer").Close()

			classifier := categorizer.NewOpenAIClassifier(env.OpenAIAPIKey, "")
			c := categorizer.New(classifier.Classify, db, db)

			var ids []string
			if idsCSV != "" {
				ids = strings.Split(idsCSV, ",")
			}

			jobID, err := c.StartBatch(ctx, categorizer.BatchOptions{
				BatchSize: batchSize,
				Limit:     limit,
				IDs:       ids,
				Force:     force,
			})
			if err != nil {
				return fmt.Errorf("failed to start categorization batch: %w", err)
			}

			return awaitJob(ctx, db, jobID)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "subreddits classified per batch")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum subreddits to consider this run")
	cmd.Flags().BoolVar(&force, "force", false, "re-classify subreddits that already carry tags")
	cmd.Flags().StringVar(&idsCSV, "ids", "", "comma-separated subreddit names to restrict the batch to")
	return cmd
}

// awaitJob polls job status until the batch reaches a terminal state,
// printing a summary line each tick; cobra's run-once contract expects
// the process to block until its one unit of work finishes.
func awaitJob(ctx context.Context, db *store.Store, jobID string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := db.GetJobStatus(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed to read job status: %w", err)
			}
			if status == nil {
				continue
			}
			fmt.Printf("job %s: %s (%d/%d processed, %d tagged, %d skipped)\n",
				status.ID, status.Status, status.Processed, status.Total, status.Tagged, status.Skipped)
			if status.Status == "completed" || status.Status == "error" {
				return nil
			}
		}
	}
}
