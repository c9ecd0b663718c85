package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/models"
	"github.com/b9dashboard/social-ingest/internal/reddit"
)

// WorkingSubreddits implements reddit.SubredditStore: subreddits with
// review Ok/No Seller not scraped in the last stalenessHours, oldest
// last_scraped_at first, capped at batchSize (spec §4.6 step 1).
func (s *Store) WorkingSubreddits(ctx context.Context, stalenessHours, batchSize int) ([]models.Subreddit, error) {
	const query = `
		SELECT name, display_name, url, subscribers, accounts_active, over18,
		       review, primary_category, tags, last_scraped_at, created_at
		FROM reddit_subreddits
		WHERE review IN ('Ok', 'No Seller')
		  AND (last_scraped_at IS NULL OR last_scraped_at < NOW() - ($1 || ' hours')::interval)
		ORDER BY last_scraped_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, stalenessHours, batchSize)
	if err != nil {
		return nil, fmt.Errorf("working subreddits query: %w", err)
	}
	defer rows.Close()

	var out []models.Subreddit
	for rows.Next() {
		sub, err := scanSubreddit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubreddit(row rowScanner) (models.Subreddit, error) {
	var sub models.Subreddit
	var primaryCategory sql.NullString
	var tags pq.StringArray
	err := row.Scan(
		&sub.Name, &sub.DisplayName, &sub.URL, &sub.Subscribers, &sub.AccountsActive, &sub.Over18,
		&sub.Review, &primaryCategory, &tags, &sub.LastScrapedAt, &sub.CreatedAt,
	)
	if err != nil {
		return models.Subreddit{}, err
	}
	sub.PrimaryCategory = primaryCategory.String
	sub.Tags = []string(tags)
	return sub, nil
}

// GetSubreddit implements reddit.SubredditStore's per-row fallback,
// used whenever the in-memory cache is absent or incomplete.
func (s *Store) GetSubreddit(ctx context.Context, name string) (*models.Subreddit, error) {
	const query = `
		SELECT name, display_name, url, subscribers, accounts_active, over18,
		       review, primary_category, tags, last_scraped_at, created_at,
		       avg_upvotes_per_post, avg_comments_per_post, engagement, subreddit_score,
		       min_post_karma, min_comment_karma, min_account_age_days
		FROM reddit_subreddits
		WHERE name = $1
	`
	var sub models.Subreddit
	var primaryCategory sql.NullString
	var tags pq.StringArray
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&sub.Name, &sub.DisplayName, &sub.URL, &sub.Subscribers, &sub.AccountsActive, &sub.Over18,
		&sub.Review, &primaryCategory, &tags, &sub.LastScrapedAt, &sub.CreatedAt,
		&sub.AvgUpvotesPerPost, &sub.AvgCommentsPerPost, &sub.Engagement, &sub.SubredditScore,
		&sub.MinPostKarma, &sub.MinCommentKarma, &sub.MinAccountAgeDays,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subreddit %s: %w", name, err)
	}
	sub.PrimaryCategory = primaryCategory.String
	sub.Tags = []string(tags)
	return &sub, nil
}

// UpsertSubreddit writes row via ON CONFLICT(name), trusting that the
// caller (reddit.ProtectedMerge) has already resolved which fields may
// advance (spec §4.6 protected UPSERT).
func (s *Store) UpsertSubreddit(ctx context.Context, row models.Subreddit) error {
	const query = `
		INSERT INTO reddit_subreddits (
			name, display_name, url, subscribers, accounts_active, over18,
			review, primary_category, tags, last_scraped_at,
			avg_upvotes_per_post, avg_comments_per_post, engagement, subreddit_score,
			best_posting_day, best_posting_hour,
			min_post_karma, min_comment_karma, min_account_age_days, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, COALESCE($20, NOW())
		)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			url = EXCLUDED.url,
			subscribers = EXCLUDED.subscribers,
			accounts_active = EXCLUDED.accounts_active,
			over18 = EXCLUDED.over18,
			review = EXCLUDED.review,
			primary_category = EXCLUDED.primary_category,
			tags = EXCLUDED.tags,
			last_scraped_at = EXCLUDED.last_scraped_at,
			avg_upvotes_per_post = EXCLUDED.avg_upvotes_per_post,
			avg_comments_per_post = EXCLUDED.avg_comments_per_post,
			engagement = EXCLUDED.engagement,
			subreddit_score = EXCLUDED.subreddit_score,
			best_posting_day = EXCLUDED.best_posting_day,
			best_posting_hour = EXCLUDED.best_posting_hour,
			min_post_karma = EXCLUDED.min_post_karma,
			min_comment_karma = EXCLUDED.min_comment_karma,
			min_account_age_days = EXCLUDED.min_account_age_days
	`
	_, err := s.db.ExecContext(ctx, query,
		row.Name, row.DisplayName, row.URL, row.Subscribers, row.AccountsActive, row.Over18,
		string(row.Review), nullIfEmpty(row.PrimaryCategory), pq.Array(row.Tags), row.LastScrapedAt,
		row.AvgUpvotesPerPost, row.AvgCommentsPerPost, row.Engagement, row.SubredditScore,
		row.BestPostingDay, row.BestPostingHour,
		row.MinPostKarma, row.MinCommentKarma, row.MinAccountAgeDays, row.CreatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("subreddit", row.Name).Msg("store: upsert subreddit failed")
		return fmt.Errorf("upsert subreddit %s: %w", row.Name, err)
	}
	return nil
}

// MarkReview sets review directly, used by the subreddit scraper's
// terminal-failure handling (Banned/Private/NotFound).
func (s *Store) MarkReview(ctx context.Context, name string, review models.ReviewState) error {
	const query = `UPDATE reddit_subreddits SET review = $2 WHERE name = $1`
	_, err := s.db.ExecContext(ctx, query, name, string(review))
	if err != nil {
		return fmt.Errorf("mark review %s: %w", name, err)
	}
	return nil
}

// InsertPosts bulk-inserts posts in one transaction, deduping on
// reddit_id (spec §3: Post is unique by reddit_id).
func (s *Store) InsertPosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin post insert tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO reddit_posts (
			reddit_id, title, author, subreddit_name, created_utc, score, upvote_ratio,
			num_comments, over_18, spoiler, stickied, locked, is_self, is_video, is_gallery,
			permalink, url, domain, selftext, post_type,
			sub_primary_category, sub_tags, sub_over18
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23
		)
		ON CONFLICT (reddit_id) DO UPDATE SET
			score = EXCLUDED.score,
			upvote_ratio = EXCLUDED.upvote_ratio,
			num_comments = EXCLUDED.num_comments
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare post insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range posts {
		_, err := stmt.ExecContext(ctx,
			p.RedditID, p.Title, p.Author, p.SubredditName, p.CreatedUTC, p.Score, p.UpvoteRatio,
			p.NumComments, p.Flags.Over18, p.Flags.Spoiler, p.Flags.Stickied, p.Flags.Locked,
			p.Flags.IsSelf, p.Flags.IsVideo, p.Flags.IsGallery,
			p.Permalink, p.URL, p.Domain, p.Selftext, p.PostType,
			nullIfEmpty(p.SubPrimaryCategory), pq.Array(p.SubTags), p.SubOver18,
		)
		if err != nil {
			return fmt.Errorf("insert post %s: %w", p.RedditID, err)
		}
	}

	return tx.Commit()
}

// EnqueueUserWork inserts usernames into reddit_discovery_queue,
// deduping on conflict, for the user scraper to pick up.
func (s *Store) EnqueueUserWork(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	const query = `
		INSERT INTO reddit_discovery_queue (username, kind)
		VALUES ($1, 'user')
		ON CONFLICT (username, kind) DO NOTHING
	`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user enqueue tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare user enqueue: %w", err)
	}
	defer stmt.Close()

	for _, u := range usernames {
		if _, err := stmt.ExecContext(ctx, u); err != nil {
			return fmt.Errorf("enqueue user %s: %w", u, err)
		}
	}
	return tx.Commit()
}

// LoadSubredditPage implements reddit.PageLoader, backing the in-memory
// protected-field cache's strict pagination (spec §4.6/§9).
func (s *Store) LoadSubredditPage(ctx context.Context, offset, pageSize int) (reddit.Page, error) {
	const query = `
		SELECT name, review, primary_category, tags, over18
		FROM reddit_subreddits
		ORDER BY name
		OFFSET $1 LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, offset, pageSize)
	if err != nil {
		return reddit.Page{}, fmt.Errorf("load subreddit page: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]reddit.CacheEntry)
	count := 0
	for rows.Next() {
		var name string
		var primaryCategory sql.NullString
		var tags pq.StringArray
		var entry reddit.CacheEntry
		if err := rows.Scan(&name, &entry.Review, &primaryCategory, &tags, &entry.Over18); err != nil {
			return reddit.Page{}, err
		}
		entry.PrimaryCategory = primaryCategory.String
		entry.Tags = []string(tags)
		entries[name] = entry
		count++
	}
	if err := rows.Err(); err != nil {
		return reddit.Page{}, err
	}
	return reddit.Page{Entries: entries, Returned: count}, nil
}

// CountSubreddits implements reddit.PageLoader's head-count query used
// to detect an incomplete pagination pass.
func (s *Store) CountSubreddits(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reddit_subreddits`).Scan(&count)
	return count, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
