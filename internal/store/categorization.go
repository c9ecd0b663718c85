package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// UntaggedSubreddits implements categorizer.Store: curated subreddits
// with no tags yet, optionally narrowed to an explicit id list (the
// API's single-subreddit categorization path).
func (s *Store) UntaggedSubreddits(ctx context.Context, limit int, ids []string) ([]models.Subreddit, error) {
	var rows *sql.Rows
	var err error
	if len(ids) > 0 {
		const query = `
			SELECT name, display_name, url, subscribers, accounts_active, over18,
			       review, primary_category, tags, last_scraped_at, created_at
			FROM reddit_subreddits
			WHERE name = ANY($1)
			ORDER BY name
		`
		rows, err = s.db.QueryContext(ctx, query, pq.Array(ids))
	} else {
		const query = `
			SELECT name, display_name, url, subscribers, accounts_active, over18,
			       review, primary_category, tags, last_scraped_at, created_at
			FROM reddit_subreddits
			WHERE review IN ('Ok', 'No Seller')
			  AND (tags IS NULL OR array_length(tags, 1) IS NULL)
			ORDER BY name
			LIMIT $1
		`
		rows, err = s.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("untagged subreddits query: %w", err)
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

// SetTags implements categorizer.Store: writes curator-facing tags and
// the derived primary category in one statement.
func (s *Store) SetTags(ctx context.Context, name string, tags []string, primaryCategory string) error {
	const query = `
		UPDATE reddit_subreddits SET tags = $2, primary_category = $3 WHERE name = $1
	`
	_, err := s.db.ExecContext(ctx, query, name, pq.Array(tags), primaryCategory)
	if err != nil {
		return fmt.Errorf("set tags %s: %w", name, err)
	}
	return nil
}

// CreateJob implements categorizer.JobTracker: opens a progress row for
// a newly started categorization batch.
func (s *Store) CreateJob(ctx context.Context, jobID string, total int) error {
	const query = `
		INSERT INTO categorization_jobs (id, total, processed, tagged, skipped, status, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 'running', NOW(), NOW())
	`
	_, err := s.db.ExecContext(ctx, query, jobID, total)
	if err != nil {
		return fmt.Errorf("create categorization job %s: %w", jobID, err)
	}
	return nil
}

// AdvanceJob implements categorizer.JobTracker: updates a batch's
// running progress counters, polled by /api/categorization/status/:job_id.
func (s *Store) AdvanceJob(ctx context.Context, jobID string, processed, tagged, skipped int) error {
	const query = `
		UPDATE categorization_jobs SET processed = $2, tagged = $3, skipped = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, jobID, processed, tagged, skipped)
	if err != nil {
		return fmt.Errorf("advance categorization job %s: %w", jobID, err)
	}
	return nil
}

// CompleteJob implements categorizer.JobTracker: marks a batch done.
func (s *Store) CompleteJob(ctx context.Context, jobID string) error {
	const query = `
		UPDATE categorization_jobs SET status = 'completed', updated_at = NOW() WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("complete categorization job %s: %w", jobID, err)
	}
	return nil
}

// JobStatus backs the supplemented /api/categorization/status/:job_id
// endpoint.
type JobStatus struct {
	ID        string
	Total     int
	Processed int
	Tagged    int
	Skipped   int
	Status    string
}

// GetJobStatus reads one categorization job's progress row.
func (s *Store) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	const query = `
		SELECT id, total, processed, tagged, skipped, status
		FROM categorization_jobs WHERE id = $1
	`
	var st JobStatus
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(&st.ID, &st.Total, &st.Processed, &st.Tagged, &st.Skipped, &st.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job status %s: %w", jobID, err)
	}
	return &st, nil
}
