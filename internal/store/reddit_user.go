package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// UserWorkQueue implements reddit.UserStore: the next batch of
// discovered usernames awaiting a quality-score pass, oldest first.
func (s *Store) UserWorkQueue(ctx context.Context, limit int) ([]string, error) {
	const query = `
		SELECT username FROM reddit_discovery_queue
		WHERE kind = 'user'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("user work queue query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		out = append(out, username)
	}
	return out, rows.Err()
}

// UpsertUser writes a scored reddit user row, advancing karma/score on
// every visit (users carry no curator-protected fields).
func (s *Store) UpsertUser(ctx context.Context, user models.RedditUser) error {
	const query = `
		INSERT INTO reddit_users (
			username, account_age_days, post_karma, comment_karma, is_suspended,
			username_score, age_score, karma_score, overall_score, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10, NOW()),NOW())
		ON CONFLICT (username) DO UPDATE SET
			account_age_days = EXCLUDED.account_age_days,
			post_karma = EXCLUDED.post_karma,
			comment_karma = EXCLUDED.comment_karma,
			is_suspended = EXCLUDED.is_suspended,
			username_score = EXCLUDED.username_score,
			age_score = EXCLUDED.age_score,
			karma_score = EXCLUDED.karma_score,
			overall_score = EXCLUDED.overall_score,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		user.Username, user.AccountAgeDays, user.PostKarma, user.CommentKarma, user.IsSuspended,
		user.UsernameScore, user.AgeScore, user.KarmaScore, user.OverallScore, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert reddit user %s: %w", user.Username, err)
	}

	const dequeue = `DELETE FROM reddit_discovery_queue WHERE username = $1 AND kind = 'user'`
	if _, err := s.db.ExecContext(ctx, dequeue, user.Username); err != nil {
		return fmt.Errorf("dequeue reddit user %s: %w", user.Username, err)
	}
	return nil
}

// MarkSuspended flags a user account as suspended without touching its
// last-known karma figures, and removes it from the work queue.
func (s *Store) MarkSuspended(ctx context.Context, username string) error {
	const query = `
		INSERT INTO reddit_users (username, is_suspended, created_at, updated_at)
		VALUES ($1, true, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET is_suspended = true, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("mark suspended %s: %w", username, err)
	}
	const dequeue = `DELETE FROM reddit_discovery_queue WHERE username = $1 AND kind = 'user'`
	if _, err := s.db.ExecContext(ctx, dequeue, username); err != nil {
		return fmt.Errorf("dequeue suspended user %s: %w", username, err)
	}
	return nil
}

// DiscoverSubreddits inserts newly seen subreddit names as 'Unset'
// review rows, deduping on conflict, so the subreddit scraper picks
// them up for a first pass once curated. Names are lowercased before
// insert so differently-cased sightings of the same subreddit collapse
// onto the same ON CONFLICT (name) key instead of producing duplicate
// rows.
func (s *Store) DiscoverSubreddits(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	const query = `
		INSERT INTO reddit_subreddits (name, review, created_at)
		VALUES ($1, '', NOW())
		ON CONFLICT (name) DO NOTHING
	`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin subreddit discovery tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare subreddit discovery: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, err := stmt.ExecContext(ctx, name); err != nil {
			return fmt.Errorf("discover subreddit %s: %w", name, err)
		}
	}
	return tx.Commit()
}
