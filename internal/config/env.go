// Package config implements the Config Store (C1): process bootstrap
// settings from the environment, overlaid by a DB-backed cache that
// is refreshed lazily per scraper.
package config

import (
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// EnvConfig holds process-wide settings sourced from environment
// variables, parsed with caarlos0/env. This is the "defaults read
// from code" half of C1; the DB overlay in store.go supplies the
// "config map stored on the control row" half.
type EnvConfig struct {
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	Port          string `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir        string `env:"LOG_DIR" envDefault:"./logs"`

	SupabaseURL       string `env:"SUPABASE_URL,required"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY,required"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	RapidAPIKey  string `env:"RAPIDAPI_KEY"`
	RapidAPIHost string `env:"RAPIDAPI_HOST"`
	CronSecret   string `env:"CRON_SECRET"`

	RedisURL string `env:"REDIS_URL"`

	// REDDIT_SCRAPER_* overrides, mirroring scraper_config.py's
	// env_mappings table. These seed EnvConfig's view of C1's
	// recognized options; the DB overlay in Store still wins when a
	// value is present in the control row's config map.
	RedditBatchSize          int     `env:"REDDIT_SCRAPER_BATCH_SIZE" envDefault:"50"`
	RedditUserBatchSize      int     `env:"REDDIT_SCRAPER_USER_BATCH_SIZE" envDefault:"30"`
	RedditPostsPerSubreddit  int     `env:"REDDIT_SCRAPER_POSTS_PER_SUBREDDIT" envDefault:"30"`
	RedditUserSubmissionsLim int     `env:"REDDIT_SCRAPER_USER_SUBMISSIONS_LIMIT" envDefault:"30"`
	RedditRateLimitDelay     float64 `env:"REDDIT_SCRAPER_RATE_LIMIT_DELAY" envDefault:"1.0"`
	RedditMaxRetries         int     `env:"REDDIT_SCRAPER_MAX_RETRIES" envDefault:"3"`
	RedditTimeoutSeconds     int     `env:"REDDIT_SCRAPER_TIMEOUT" envDefault:"300"`
	RedditCacheBatchSize     int     `env:"REDDIT_SCRAPER_CACHE_BATCH_SIZE" envDefault:"1000"`
	RedditHeartbeatInterval  int     `env:"REDDIT_SCRAPER_HEARTBEAT_INTERVAL" envDefault:"30"`
	RedditMaxThreads         int     `env:"REDDIT_SCRAPER_MAX_THREADS" envDefault:"0"` // 0 = derive from proxies
	RedditStalenessHours     int     `env:"REDDIT_SCRAPER_STALENESS_HOURS" envDefault:"24"`

	InstagramConcurrentCreators int     `env:"INSTAGRAM_SCRAPER_CONCURRENT_CREATORS" envDefault:"10"`
	InstagramRequestsPerSecond int     `env:"INSTAGRAM_SCRAPER_REQUESTS_PER_SECOND" envDefault:"55"`
	InstagramRetryEmptyResp    int     `env:"INSTAGRAM_SCRAPER_RETRY_EMPTY_RESPONSE" envDefault:"2"`
	InstagramCostPerRequest    float64 `env:"INSTAGRAM_SCRAPER_COST_PER_REQUEST" envDefault:"0.001"`

	LogCleanupRetentionDays int `env:"LOG_CLEANUP_RETENTION_DAYS" envDefault:"30"`
}

// LoadEnv loads a local .env file (if present, ignored if absent) then
// parses the process environment into an EnvConfig. Missing required
// variables are a Config-kind fatal error at startup per spec §7.
func LoadEnv() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file found, continuing with process environment")
	}

	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = strings.ToLower(cfg.Environment)
	return cfg, nil
}

func (c *EnvConfig) IsDevelopment() bool { return c.Environment == "development" }
func (c *EnvConfig) IsProduction() bool  { return c.Environment == "production" }
