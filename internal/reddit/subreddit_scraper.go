package reddit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/apperr"
	ingestmetrics "github.com/b9dashboard/social-ingest/internal/metrics"
	"github.com/b9dashboard/social-ingest/internal/models"
)

// SubredditStore is the narrow persistence dependency of the subreddit
// scraper: reading working-set rows, performing the protected upsert,
// marking terminal review states, and enqueuing discovered authors.
type SubredditStore interface {
	WorkingSubreddits(ctx context.Context, stalenessHours, batchSize int) ([]models.Subreddit, error)
	GetSubreddit(ctx context.Context, name string) (*models.Subreddit, error)
	UpsertSubreddit(ctx context.Context, row models.Subreddit) error
	MarkReview(ctx context.Context, name string, review models.ReviewState) error
	InsertPosts(ctx context.Context, posts []models.Post) error
	EnqueueUserWork(ctx context.Context, usernames []string) error
}

// ProxyPicker hands out a proxy for a single request, as implemented
// by proxy.Pool.
type ProxyPicker interface {
	Next() (*models.Proxy, error)
}

// SubredditScraperOptions carries the per-cycle tunables sourced from
// config.Store (spec §4.1/§4.6).
type SubredditScraperOptions struct {
	StalenessHours    int
	BatchSize         int
	PostsPerSubreddit int
}

// SubredditScraper runs one C6 cycle against the working set.
type SubredditScraper struct {
	client  *Client
	store   SubredditStore
	cache   *Cache
	proxies ProxyPicker
}

func NewSubredditScraper(client *Client, store SubredditStore, cache *Cache, proxies ProxyPicker) *SubredditScraper {
	return &SubredditScraper{client: client, store: store, cache: cache, proxies: proxies}
}

// RunCycle determines the working set, shards it across workerCount
// goroutines (the caller derives workerCount from the proxy pool's
// working count, clamped to [1,9] per spec §4.6), and processes every
// subreddit in the set. enabled is polled between items so a control
// row disable lands within the current item's fetch plus one more
// dispatch, not the whole batch; it may be nil, which skips the check
// (the run-once commands pass a function that always returns true).
func (s *SubredditScraper) RunCycle(ctx context.Context, opts SubredditScraperOptions, workerCount int, enabled func() bool) error {
	working, err := s.store.WorkingSubreddits(ctx, opts.StalenessHours, opts.BatchSize)
	if err != nil {
		return err
	}

	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > 9 {
		workerCount = 9
	}

	jobs := make(chan models.Subreddit)
	done := make(chan struct{})

	for i := 0; i < workerCount; i++ {
		go func() {
			for sub := range jobs {
				if enabled != nil && !enabled() {
					continue
				}
				s.processOne(ctx, sub, opts)
			}
			done <- struct{}{}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sub := range working {
			if enabled != nil && !enabled() {
				return
			}
			select {
			case jobs <- sub:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		<-done
	}

	return nil
}

func (s *SubredditScraper) processOne(ctx context.Context, sub models.Subreddit, opts SubredditScraperOptions) {
	var p *models.Proxy
	if s.proxies != nil {
		picked, err := s.proxies.Next()
		if err == nil {
			p = picked
		}
	}

	about, kind := s.client.FetchAbout(ctx, sub.Name, p)
	if kind != "" {
		s.handleTerminal(ctx, sub.Name, kind)
		return
	}

	hot, kind := s.client.FetchHotPosts(ctx, sub.Name, opts.PostsPerSubreddit, p)
	if kind != "" {
		s.handleTerminal(ctx, sub.Name, kind)
		return
	}

	top, kind := s.client.FetchTopPosts(ctx, sub.Name, 10, p)
	if kind != "" {
		// Top-post failure only costs the best-posting-time metric;
		// the cycle still proceeds with an empty top-post set.
		log.Warn().Str("subreddit", sub.Name).Str("kind", string(kind)).Msg("subreddit scraper: top posts fetch failed, continuing without posting-time metrics")
		top = nil
	}

	metrics := computeSubredditMetrics(hot, top, about.Subscribers)

	existing, err := s.existingFor(ctx, sub.Name)
	if err != nil {
		log.Error().Err(err).Str("subreddit", sub.Name).Msg("subreddit scraper: failed to load existing row")
		return
	}

	computed := ComputedSubreddit{
		Name:               sub.Name,
		DisplayName:        about.DisplayName,
		URL:                about.URL,
		Subscribers:        about.Subscribers,
		AccountsActive:     about.AccountsActive,
		Over18:             about.Over18,
		AvgUpvotesPerPost:  metrics.AvgUpvotesPerPost,
		AvgCommentsPerPost: metrics.AvgCommentsPerPost,
		Engagement:         metrics.Engagement,
		SubredditScore:     metrics.SubredditScore,
		BestPostingDay:     metrics.BestPostingDay,
		BestPostingHour:    metrics.BestPostingHour,
		ScrapedAt:          time.Now().UTC(),
	}

	row := ProtectedMerge(existing, computed)
	if err := s.store.UpsertSubreddit(ctx, row); err != nil {
		log.Error().Err(err).Str("subreddit", sub.Name).Msg("subreddit scraper: upsert failed")
		return
	}

	posts := toModelPosts(hot, row)
	if err := s.store.InsertPosts(ctx, posts); err != nil {
		log.Error().Err(err).Str("subreddit", sub.Name).Msg("subreddit scraper: post insert failed")
	}

	if row.Review == models.ReviewOk {
		authors := uniqueAuthors(hot)
		if len(authors) > 0 {
			if err := s.store.EnqueueUserWork(ctx, authors); err != nil {
				log.Error().Err(err).Str("subreddit", sub.Name).Msg("subreddit scraper: author enqueue failed")
			}
		}
	}

	ingestmetrics.ItemsProcessedTotal.WithLabelValues("reddit_subreddit").Inc()
	logCompleted(sub.Name, metrics)
}

// FetchSingle performs one on-demand fetch+merge+upsert for a single
// subreddit outside the normal cycle, backing the API's
// POST /api/subreddits/fetch-single (spec §4.11). It returns the
// merged row so the handler can render it directly, and apperr.Kind
// when the fetch terminates early (banned/private/not-found/rate
// limited), leaving review-state updates to the caller's judgment
// rather than writing them silently as the background cycle does.
func (s *SubredditScraper) FetchSingle(ctx context.Context, name string, opts SubredditScraperOptions) (models.Subreddit, apperr.Kind, error) {
	var p *models.Proxy
	if s.proxies != nil {
		if picked, err := s.proxies.Next(); err == nil {
			p = picked
		}
	}

	about, kind := s.client.FetchAbout(ctx, name, p)
	if kind != "" {
		return models.Subreddit{}, kind, nil
	}

	postsPerSubreddit := opts.PostsPerSubreddit
	if postsPerSubreddit <= 0 {
		postsPerSubreddit = 25
	}

	hot, kind := s.client.FetchHotPosts(ctx, name, postsPerSubreddit, p)
	if kind != "" {
		return models.Subreddit{}, kind, nil
	}

	top, kind := s.client.FetchTopPosts(ctx, name, 10, p)
	if kind != "" {
		top = nil
	}

	metrics := computeSubredditMetrics(hot, top, about.Subscribers)

	existing, err := s.existingFor(ctx, name)
	if err != nil {
		return models.Subreddit{}, "", err
	}

	computed := ComputedSubreddit{
		Name:               name,
		DisplayName:        about.DisplayName,
		URL:                about.URL,
		Subscribers:        about.Subscribers,
		AccountsActive:     about.AccountsActive,
		Over18:             about.Over18,
		AvgUpvotesPerPost:  metrics.AvgUpvotesPerPost,
		AvgCommentsPerPost: metrics.AvgCommentsPerPost,
		Engagement:         metrics.Engagement,
		SubredditScore:     metrics.SubredditScore,
		BestPostingDay:     metrics.BestPostingDay,
		BestPostingHour:    metrics.BestPostingHour,
		ScrapedAt:          time.Now().UTC(),
	}

	row := ProtectedMerge(existing, computed)
	if err := s.store.UpsertSubreddit(ctx, row); err != nil {
		return models.Subreddit{}, "", err
	}

	posts := toModelPosts(hot, row)
	if err := s.store.InsertPosts(ctx, posts); err != nil {
		log.Error().Err(err).Str("subreddit", name).Msg("subreddit scraper: post insert failed")
	}

	logCompleted(name, metrics)
	return row, "", nil
}

// existingFor prefers the complete in-memory cache; when the cache is
// absent or incomplete, it falls back to a per-row store lookup so
// protected-field decisions are never made on stale or partial data.
func (s *SubredditScraper) existingFor(ctx context.Context, name string) (*models.Subreddit, error) {
	if s.cache != nil {
		if entry, ok := s.cache.Lookup(name); ok {
			return &models.Subreddit{
				Review:          entry.Review,
				PrimaryCategory: entry.PrimaryCategory,
				Tags:            entry.Tags,
				Over18:          entry.Over18,
			}, nil
		}
	}
	return s.store.GetSubreddit(ctx, name)
}

func (s *SubredditScraper) handleTerminal(ctx context.Context, name string, kind apperr.Kind) {
	switch kind {
	case apperr.KindBanned:
		_ = s.store.MarkReview(ctx, name, models.ReviewBanned)
	case apperr.KindForbidden:
		_ = s.store.MarkReview(ctx, name, models.ReviewPrivate)
	case apperr.KindNotFound:
		_ = s.store.MarkReview(ctx, name, models.ReviewNotFound)
	case apperr.KindRateLimited:
		log.Warn().Str("subreddit", name).Msg("subreddit scraper: rate limited, re-queued for next cycle")
	default:
		log.Warn().Str("subreddit", name).Str("kind", string(kind)).Msg("subreddit scraper: transport error, item skipped")
	}
}

func toModelPosts(raw []RawPost, sub models.Subreddit) []models.Post {
	posts := make([]models.Post, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, models.Post{
			RedditID:      p.ID,
			Title:         p.Title,
			Author:        p.Author,
			SubredditName: sub.Name,
			CreatedUTC:    time.Unix(int64(p.CreatedUTC), 0).UTC(),
			Score:         p.Score,
			UpvoteRatio:   p.UpvoteRatio,
			NumComments:   p.NumComments,
			Flags: models.PostFlags{
				Over18:    p.Over18,
				Spoiler:   p.Spoiler,
				Stickied:  p.Stickied,
				Locked:    p.Locked,
				IsSelf:    p.IsSelf,
				IsVideo:   p.IsVideo,
				IsGallery: p.IsGallery,
			},
			Permalink:          p.Permalink,
			URL:                p.URL,
			Domain:             p.Domain,
			Selftext:           models.TruncateSelftext(p.Selftext),
			SubPrimaryCategory: sub.PrimaryCategory,
			SubTags:            sub.Tags,
			SubOver18:          sub.Over18,
		})
	}
	return posts
}

func uniqueAuthors(posts []RawPost) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range posts {
		if p.Author == "" || p.Author == "[deleted]" {
			continue
		}
		if _, ok := seen[p.Author]; ok {
			continue
		}
		seen[p.Author] = struct{}{}
		out = append(out, p.Author)
	}
	return out
}

// logCompleted emits the single "Completed" line spec §4.6 requires,
// rendering "Best: N/A N/A" when engagement never cleared the 0.01
// gate (spec §9's zero-engagement rendering fix).
func logCompleted(name string, m SubredditMetrics) {
	best := "N/A N/A"
	if m.BestPostingDay != nil && m.BestPostingHour != nil {
		best = fmt.Sprintf("%s %d:00", time.Weekday(*m.BestPostingDay), *m.BestPostingHour)
	}
	log.Info().
		Str("subreddit", name).
		Float64("engagement", m.Engagement).
		Float64("avg_upvotes", m.AvgUpvotesPerPost).
		Float64("score", m.SubredditScore).
		Msgf("Completed r/%s engagement=%.4f avg_upvotes=%.1f score=%.1f Best: %s", name, m.Engagement, m.AvgUpvotesPerPost, m.SubredditScore, best)
}
