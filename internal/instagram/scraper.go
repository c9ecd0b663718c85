package instagram

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/metrics"
	"github.com/b9dashboard/social-ingest/internal/models"
)

const (
	firstTimeReelCount = 90
	existingReelCount  = 30
	firstTimePostCount = 30
	existingPostCount  = 10
)

// CreatorStore is the narrow persistence dependency of the scraper:
// reading the working set, writing profile/analytics updates, upserting
// media, and recording follower snapshots for growth tracking.
type CreatorStore interface {
	WorkingCreators(ctx context.Context) ([]models.InstagramCreator, error)
	UpsertCreator(ctx context.Context, c models.InstagramCreator) error
	UpsertReels(ctx context.Context, creatorID string, reels []models.Reel) error
	UpsertPosts(ctx context.Context, creatorID string, posts []models.IGPost) error
	RecordFollowerSnapshot(ctx context.Context, snap models.FollowerSnapshot) error
}

// Scraper runs one C8 cycle over the Instagram creator working set,
// adapting the teacher's pkg/queue/worker.go fixed-size goroutine pool
// (channel + WaitGroup) from generic tasks to per-creator scrape jobs.
type Scraper struct {
	client *Client
	store  CreatorStore

	numWorkers int
}

func NewScraper(client *Client, store CreatorStore, numWorkers int) *Scraper {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	return &Scraper{client: client, store: store, numWorkers: numWorkers}
}

// RunCycle processes every enabled creator, checking enabled between
// items so a control row disable lands within the current in-flight
// batch plus one more dispatch instead of waiting for the whole
// working set to drain (Open Question decision: a cooperative poll
// beats hard-cancelling an in-flight HTTP call). enabled may be nil,
// which skips the check (run-once passes a function that always
// returns true).
func (s *Scraper) RunCycle(ctx context.Context, enabled func() bool) error {
	creators, err := s.store.WorkingCreators(ctx)
	if err != nil {
		return err
	}

	jobs := make(chan models.InstagramCreator)
	var wg sync.WaitGroup
	wg.Add(s.numWorkers)

	for i := 0; i < s.numWorkers; i++ {
		go func() {
			defer wg.Done()
			for c := range jobs {
				if enabled != nil && !enabled() {
					continue
				}
				s.processOne(ctx, c)
			}
		}()
	}

	for _, c := range creators {
		if enabled != nil && !enabled() {
			break
		}
		select {
		case jobs <- c:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}

func (s *Scraper) processOne(ctx context.Context, creator models.InstagramCreator) {
	firstTime := creator.LastScrapedAt == nil

	profile, err := s.client.FetchProfile(ctx, creator.Username)
	if err != nil {
		log.Warn().Err(err).Str("creator", creator.Username).Msg("instagram scraper: profile fetch failed, skipping")
		return
	}

	reelLimit := existingReelCount
	postLimit := existingPostCount
	if firstTime {
		reelLimit = firstTimeReelCount
		postLimit = firstTimePostCount
	}

	rawReels, err := s.client.FetchReels(ctx, creator.Username, reelLimit)
	if err != nil {
		log.Warn().Err(err).Str("creator", creator.Username).Msg("instagram scraper: reels fetch failed, continuing without reels")
		rawReels = nil
	}

	rawPosts, err := s.client.FetchPosts(ctx, creator.Username, postLimit)
	if err != nil {
		log.Warn().Err(err).Str("creator", creator.Username).Msg("instagram scraper: posts fetch failed, continuing without posts")
		rawPosts = nil
	}

	reelStats := make([]ContentStat, len(rawReels))
	for i, r := range rawReels {
		reelStats[i] = ContentStat{LikeCount: r.LikeCount, CommentCount: r.CommentCount, ViewCount: r.ViewCount}
	}
	postStats := make([]ContentStat, len(rawPosts))
	for i, p := range rawPosts {
		postStats[i] = ContentStat{LikeCount: p.LikeCount, CommentCount: p.CommentCount, ViewCount: p.ViewCount}
	}

	analytics := computeAnalytics(reelStats, postStats, profile.FollowersCount)

	now := time.Now().UTC()
	updated := models.InstagramCreator{
		IGUserID:             profile.IGUserID,
		Username:             creator.Username,
		FollowersCount:       profile.FollowersCount,
		FollowingCount:       profile.FollowingCount,
		MediaCount:           profile.MediaCount,
		Niche:                creator.Niche,
		ReviewStatus:         creator.ReviewStatus,
		ProfilePicURL:        profile.ProfilePicURL,
		Enabled:              creator.Enabled,
		AvgViewsPerReel:      analytics.AvgViewsPerReel,
		AvgEngagementPerPost: analytics.AvgEngagementPerPost,
		EngagementRate:       analytics.EngagementRate,
		LastScrapedAt:        &now,
		CreatedAt:            creator.CreatedAt,
	}

	if err := s.store.UpsertCreator(ctx, updated); err != nil {
		log.Error().Err(err).Str("creator", creator.Username).Msg("instagram scraper: upsert failed")
		return
	}

	if err := s.store.RecordFollowerSnapshot(ctx, models.FollowerSnapshot{
		CreatorID:      profile.IGUserID,
		ObservedAt:     now,
		FollowersCount: profile.FollowersCount,
	}); err != nil {
		log.Warn().Err(err).Str("creator", creator.Username).Msg("instagram scraper: follower snapshot failed")
	}

	reels := make([]models.Reel, len(rawReels))
	for i, r := range rawReels {
		reels[i] = models.Reel{
			MediaPK:   r.MediaPK,
			CreatorID: profile.IGUserID,
			TakenAt:   time.Unix(int64(r.TakenAt), 0).UTC(),
			Counts: models.MediaCounts{
				LikeCount:    r.LikeCount,
				CommentCount: r.CommentCount,
				ViewCount:    r.ViewCount,
				PlayCount:    r.PlayCount,
			},
			MediaURLs: r.MediaURLs,
			IsViral:   isViral(r.ViewCount, analytics.AvgViewsPerReel),
		}
	}
	if len(reels) > 0 {
		if err := s.store.UpsertReels(ctx, profile.IGUserID, reels); err != nil {
			log.Error().Err(err).Str("creator", creator.Username).Msg("instagram scraper: reel upsert failed")
		}
	}

	posts := make([]models.IGPost, len(rawPosts))
	for i, p := range rawPosts {
		posts[i] = models.IGPost{
			MediaPK:   p.MediaPK,
			CreatorID: profile.IGUserID,
			TakenAt:   time.Unix(int64(p.TakenAt), 0).UTC(),
			Counts: models.MediaCounts{
				LikeCount:    p.LikeCount,
				CommentCount: p.CommentCount,
				ViewCount:    p.ViewCount,
				PlayCount:    p.PlayCount,
			},
			MediaURLs: p.MediaURLs,
		}
	}
	if len(posts) > 0 {
		if err := s.store.UpsertPosts(ctx, profile.IGUserID, posts); err != nil {
			log.Error().Err(err).Str("creator", creator.Username).Msg("instagram scraper: post upsert failed")
		}
	}

	metrics.ItemsProcessedTotal.WithLabelValues("instagram_creator").Inc()
	log.Info().
		Str("creator", creator.Username).
		Float64("engagement_rate", analytics.EngagementRate).
		Float64("avg_views_per_reel", analytics.AvgViewsPerReel).
		Bool("first_time", firstTime).
		Msg("instagram scraper: creator cycle complete")
}
