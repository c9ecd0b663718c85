package config

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Recognized C1 option keys.
const (
	KeyBatchSize            = "batch_size"
	KeyUserBatchSize         = "user_batch_size"
	KeyPostsPerSubreddit     = "posts_per_subreddit"
	KeyUserSubmissionsLimit  = "user_submissions_limit"
	KeyRateLimitDelay        = "rate_limit_delay"
	KeyMaxRetries            = "max_retries"
	KeyTimeout               = "timeout"
	KeyCacheBatchSize        = "cache_batch_size"
	KeyHeartbeatInterval     = "heartbeat_interval"
	KeyMaxThreads            = "max_threads"
)

const refreshInterval = 5 * time.Minute

// ControlConfigReader is the narrow DB dependency C1 needs: reading
// the free-form config map off a scraper's control row.
type ControlConfigReader interface {
	GetControlConfig(ctx context.Context, scraperName string) (map[string]any, error)
}

// Store implements C1: defaults read from EnvConfig, overlaid by the
// scraper's control-row config map, refreshed lazily every 5 minutes
// or on demand via Reload.
type Store struct {
	scraperName string
	reader      ControlConfigReader
	workingProxies func() int

	mu         sync.RWMutex
	defaults   map[string]any
	overlay    map[string]any
	lastLoaded time.Time
}

// NewStore builds a Store for the named scraper. workingProxies, when
// non-nil, supplies the live proxy count used to derive max_threads
// when it is not explicitly configured.
func NewStore(scraperName string, env *EnvConfig, reader ControlConfigReader, workingProxies func() int) *Store {
	return &Store{
		scraperName:    scraperName,
		reader:         reader,
		workingProxies: workingProxies,
		defaults:       defaultsFromEnv(env),
	}
}

func defaultsFromEnv(env *EnvConfig) map[string]any {
	return map[string]any{
		KeyBatchSize:            env.RedditBatchSize,
		KeyUserBatchSize:        env.RedditUserBatchSize,
		KeyPostsPerSubreddit:    env.RedditPostsPerSubreddit,
		KeyUserSubmissionsLimit: env.RedditUserSubmissionsLim,
		KeyRateLimitDelay:       env.RedditRateLimitDelay,
		KeyMaxRetries:           env.RedditMaxRetries,
		KeyTimeout:              env.RedditTimeoutSeconds,
		KeyCacheBatchSize:       env.RedditCacheBatchSize,
		KeyHeartbeatInterval:    env.RedditHeartbeatInterval,
		KeyMaxThreads:           env.RedditMaxThreads,
	}
}

// Get returns the last-observed value for key: the DB overlay value
// if present, else the compiled-in default. DB read failures degrade
// silently to defaults (a warning is logged by ensureFresh).
func (s *Store) Get(ctx context.Context, key string) any {
	s.ensureFresh(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.overlay[key]; ok {
		return v
	}
	if key == KeyMaxThreads {
		if mt, ok := s.defaults[KeyMaxThreads].(int); ok && mt > 0 {
			return mt
		}
		return s.deriveMaxThreads()
	}
	return s.defaults[key]
}

// GetInt is a typed convenience wrapper over Get.
func (s *Store) GetInt(ctx context.Context, key string) int {
	switch v := s.Get(ctx, key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GetFloat is a typed convenience wrapper over Get.
func (s *Store) GetFloat(ctx context.Context, key string) float64 {
	switch v := s.Get(ctx, key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *Store) deriveMaxThreads() int {
	if s.workingProxies == nil {
		return 5
	}
	if n := s.workingProxies(); n > 0 {
		return n
	}
	return 5
}

// Reload invalidates the cache so the next Get re-reads the control
// row.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLoaded = time.Time{}
}

func (s *Store) ensureFresh(ctx context.Context) {
	s.mu.RLock()
	stale := time.Since(s.lastLoaded) >= refreshInterval
	s.mu.RUnlock()
	if !stale {
		return
	}

	if s.reader == nil {
		return
	}

	overlay, err := s.reader.GetControlConfig(ctx, s.scraperName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("scraper", s.scraperName).Msg("config store: failed to read control row, using defaults")
		s.overlay = nil
		// Still bump lastLoaded so we don't hammer the DB every call
		// while it's unhealthy.
		s.lastLoaded = time.Now()
		return
	}
	s.overlay = overlay
	s.lastLoaded = time.Now()
}
