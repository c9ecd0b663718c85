package api

import (
	"context"

	"github.com/b9dashboard/social-ingest/internal/apperr"
	"github.com/b9dashboard/social-ingest/internal/categorizer"
	"github.com/b9dashboard/social-ingest/internal/cleanup"
	"github.com/b9dashboard/social-ingest/internal/models"
	"github.com/b9dashboard/social-ingest/internal/reddit"
	"github.com/b9dashboard/social-ingest/internal/store"
)

// HealthChecker reports whether a hard dependency (the database) is
// reachable, backing GET /health's composite check (spec §4.11).
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// ProxyCounter exposes the rotation pool's working-set size for
// GET /health's dependency list.
type ProxyCounter interface {
	WorkingCount() int
}

// SubredditFetcher performs one on-demand subreddit fetch, implemented
// by *reddit.SubredditScraper.
type SubredditFetcher interface {
	FetchSingle(ctx context.Context, name string, opts reddit.SubredditScraperOptions) (models.Subreddit, apperr.Kind, error)
}

// CreatorRegistrar implements the manual creator-add path, backed by
// *store.Store.CreateCreator.
type CreatorRegistrar interface {
	CreateCreator(ctx context.Context, igUserID, username, niche string) error
}

// LogCleaner runs one cleanup pass, implemented by *cleanup.Cleaner.
type LogCleaner interface {
	Run(ctx context.Context, logDir string, retentionDays int) (cleanup.Result, error)
}

// CategorizationStarter kicks off an async tagging batch, implemented
// by *categorizer.Categorizer.
type CategorizationStarter interface {
	StartBatch(ctx context.Context, opts categorizer.BatchOptions) (string, error)
}

// JobStatusReader backs the supplemented job-status endpoint.
type JobStatusReader interface {
	GetJobStatus(ctx context.Context, jobID string) (*store.JobStatus, error)
}

// ScraperControl flips a scraper's enabled flag, implemented by
// *store.Store.
type ScraperControl interface {
	EnableScraper(ctx context.Context, name string) error
	DisableScraper(ctx context.Context, name string) error
}

// Deps bundles every dependency a handler might need. Fields are left
// nil when a binary doesn't wire that capability (e.g. the categorizer
// binary's API doesn't need SubredditFetcher); handlers check for nil
// and return 501 rather than panicking.
type Deps struct {
	ServerName  string
	LogDir      string
	CronSecret  string
	DB          HealthChecker
	Proxies     ProxyCounter
	Subreddits  SubredditFetcher
	Creators    CreatorRegistrar
	Cleaner     LogCleaner
	Categorizer CategorizationStarter
	Jobs        JobStatusReader
	Control     ScraperControl
}
