package reddit

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// CacheEntry is the narrow slice of a subreddit's row this cache
// keeps, matching the protected fields the upsert policy must not
// blindly overwrite.
type CacheEntry struct {
	Review          models.ReviewState
	PrimaryCategory string
	Tags            []string
	Over18          *bool
}

// Page is one page of subreddit rows loaded for the cache, as returned
// by PageLoader.
type Page struct {
	Entries map[string]CacheEntry
	// Returned is the number of rows this page call produced, used
	// against PageSize to decide whether to continue paginating.
	Returned int
}

// PageLoader is the narrow DB dependency the cache uses to page
// through subreddit rows and to obtain an authoritative count.
type PageLoader interface {
	LoadSubredditPage(ctx context.Context, offset, pageSize int) (Page, error)
	CountSubreddits(ctx context.Context) (int64, error)
}

// Cache is the in-memory name→protected-fields lookup used to avoid a
// per-row DB read on every scrape decision. Per spec §4.6/§9, it is
// loaded with strict pagination and cross-checked against a head-count
// query: a cache that did not load every row is marked incomplete and
// MUST NOT be trusted for write decisions — callers must fall back to
// a per-row lookup instead.
type Cache struct {
	loader   PageLoader
	pageSize int

	mu       sync.RWMutex
	entries  map[string]CacheEntry
	complete bool
}

const defaultPageSize = 1000

func NewCache(loader PageLoader) *Cache {
	return &Cache{loader: loader, pageSize: defaultPageSize}
}

// Load pages through every subreddit row, continuing while each page
// returns a full page_size batch, then cross-checks the loaded count
// against an authoritative head-count query. Incomplete loads are
// logged at error level and leave Complete() false.
func (c *Cache) Load(ctx context.Context) error {
	entries := make(map[string]CacheEntry)
	offset := 0
	for {
		page, err := c.loader.LoadSubredditPage(ctx, offset, c.pageSize)
		if err != nil {
			return err
		}
		for name, e := range page.Entries {
			entries[name] = e
		}
		offset += page.Returned
		if page.Returned < c.pageSize {
			break
		}
	}

	total, err := c.loader.CountSubreddits(ctx)
	if err != nil {
		return err
	}

	complete := int64(len(entries)) >= total

	c.mu.Lock()
	c.entries = entries
	c.complete = complete
	c.mu.Unlock()

	if !complete {
		log.Error().
			Int("loaded", len(entries)).
			Int64("expected", total).
			Msg("subreddit cache: pagination incomplete, falling back to per-row lookups for protected fields")
	}

	return nil
}

// Complete reports whether the cache loaded every row and may be
// trusted for protected-field write decisions.
func (c *Cache) Complete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.complete
}

// Lookup returns the cached entry for name, if present and the cache
// is complete. ok is false whenever the cache cannot be trusted,
// signaling the caller to fall back to a per-row DB read.
func (c *Cache) Lookup(name string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.complete {
		return CacheEntry{}, false
	}
	e, ok := c.entries[name]
	return e, ok
}
