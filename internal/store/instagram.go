package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// WorkingCreators implements instagram.CreatorStore: enabled creators,
// oldest last_scraped_at first (spec §5.4 step 1).
func (s *Store) WorkingCreators(ctx context.Context) ([]models.InstagramCreator, error) {
	const query = `
		SELECT ig_user_id, username, followers_count, following_count, media_count,
		       niche, review_status, profile_pic_url, enabled,
		       avg_views_per_reel, avg_engagement_per_post, engagement_rate,
		       last_scraped_at, created_at, updated_at
		FROM instagram_creators
		WHERE enabled = true
		ORDER BY last_scraped_at ASC NULLS FIRST
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("working creators query: %w", err)
	}
	defer rows.Close()

	var out []models.InstagramCreator
	for rows.Next() {
		var c models.InstagramCreator
		err := rows.Scan(
			&c.IGUserID, &c.Username, &c.FollowersCount, &c.FollowingCount, &c.MediaCount,
			&c.Niche, &c.ReviewStatus, &c.ProfilePicURL, &c.Enabled,
			&c.AvgViewsPerReel, &c.AvgEngagementPerPost, &c.EngagementRate,
			&c.LastScrapedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCreator writes the scraped profile and computed analytics,
// preserving niche/review_status/enabled the way curators set them
// (those columns are simply not touched by EXCLUDED here).
func (s *Store) UpsertCreator(ctx context.Context, c models.InstagramCreator) error {
	const query = `
		INSERT INTO instagram_creators (
			ig_user_id, username, followers_count, following_count, media_count,
			profile_pic_url, avg_views_per_reel, avg_engagement_per_post, engagement_rate,
			last_scraped_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,COALESCE($11, NOW()),NOW())
		ON CONFLICT (ig_user_id) DO UPDATE SET
			username = EXCLUDED.username,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			media_count = EXCLUDED.media_count,
			profile_pic_url = EXCLUDED.profile_pic_url,
			avg_views_per_reel = EXCLUDED.avg_views_per_reel,
			avg_engagement_per_post = EXCLUDED.avg_engagement_per_post,
			engagement_rate = EXCLUDED.engagement_rate,
			last_scraped_at = EXCLUDED.last_scraped_at,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		c.IGUserID, c.Username, c.FollowersCount, c.FollowingCount, c.MediaCount,
		c.ProfilePicURL, c.AvgViewsPerReel, c.AvgEngagementPerPost, c.EngagementRate,
		c.LastScrapedAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert instagram creator %s: %w", c.Username, err)
	}
	return nil
}

// UpsertReels bulk-writes reels for one creator, deduping on MediaPK.
func (s *Store) UpsertReels(ctx context.Context, creatorID string, reels []models.Reel) error {
	if len(reels) == 0 {
		return nil
	}
	const query = `
		INSERT INTO instagram_reels (
			media_pk, creator_id, taken_at, like_count, comment_count, view_count, play_count,
			media_urls, is_viral
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (media_pk) DO UPDATE SET
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			view_count = EXCLUDED.view_count,
			play_count = EXCLUDED.play_count,
			is_viral = EXCLUDED.is_viral
	`
	return s.withTx(ctx, query, func(stmt *sql.Stmt) error {
		for _, r := range reels {
			_, err := stmt.ExecContext(ctx,
				r.MediaPK, creatorID, r.TakenAt,
				r.Counts.LikeCount, r.Counts.CommentCount, r.Counts.ViewCount, r.Counts.PlayCount,
				pq.Array(r.MediaURLs), r.IsViral,
			)
			if err != nil {
				return fmt.Errorf("upsert reel %s: %w", r.MediaPK, err)
			}
		}
		return nil
	})
}

// UpsertPosts bulk-writes feed posts for one creator, deduping on MediaPK.
func (s *Store) UpsertPosts(ctx context.Context, creatorID string, posts []models.IGPost) error {
	if len(posts) == 0 {
		return nil
	}
	const query = `
		INSERT INTO instagram_posts (
			media_pk, creator_id, taken_at, like_count, comment_count, view_count, play_count, media_urls
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (media_pk) DO UPDATE SET
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			view_count = EXCLUDED.view_count,
			play_count = EXCLUDED.play_count
	`
	return s.withTx(ctx, query, func(stmt *sql.Stmt) error {
		for _, p := range posts {
			_, err := stmt.ExecContext(ctx,
				p.MediaPK, creatorID, p.TakenAt,
				p.Counts.LikeCount, p.Counts.CommentCount, p.Counts.ViewCount, p.Counts.PlayCount,
				pq.Array(p.MediaURLs),
			)
			if err != nil {
				return fmt.Errorf("upsert post %s: %w", p.MediaPK, err)
			}
		}
		return nil
	})
}

// ErrCreatorExists is returned by CreateCreator when ig_user_id is
// already tracked.
var ErrCreatorExists = fmt.Errorf("instagram creator already tracked")

// CreateCreator inserts a new, disabled-until-curated creator row,
// backing the manual-add POST /api/instagram/creator endpoint (spec
// §4.11). The first scraper cycle after curation performs the actual
// profile/media fetch.
func (s *Store) CreateCreator(ctx context.Context, igUserID, username, niche string) error {
	const query = `
		INSERT INTO instagram_creators (ig_user_id, username, niche, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, true, NOW(), NOW())
	`
	_, err := s.db.ExecContext(ctx, query, igUserID, username, niche)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrCreatorExists
		}
		return fmt.Errorf("create instagram creator %s: %w", username, err)
	}
	return nil
}

// RecordFollowerSnapshot appends one point to a creator's follower
// history (supplemented feature: daily/weekly growth rate).
func (s *Store) RecordFollowerSnapshot(ctx context.Context, snap models.FollowerSnapshot) error {
	const query = `
		INSERT INTO instagram_follower_history (creator_id, observed_at, followers_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (creator_id, observed_at) DO UPDATE SET followers_count = EXCLUDED.followers_count
	`
	if _, err := s.db.ExecContext(ctx, query, snap.CreatorID, snap.ObservedAt, snap.FollowersCount); err != nil {
		return fmt.Errorf("record follower snapshot for %s: %w", snap.CreatorID, err)
	}
	return nil
}

// withTx runs fn against a prepared statement inside one transaction,
// mirroring the teacher's BatchUpsertUsers pattern (pkg/database/queries.go).
func (s *Store) withTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	return tx.Commit()
}
