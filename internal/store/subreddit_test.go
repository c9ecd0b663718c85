package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/social-ingest/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: db}, mock
}

func TestWorkingSubreddits_ScansProtectedAndComputedColumns(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"name", "display_name", "url", "subscribers", "accounts_active", "over18",
		"review", "primary_category", "tags", "last_scraped_at", "created_at",
	}).AddRow("sample", "r/sample", "https://reddit.com/r/sample", 1000, 50, false,
		"Ok", "Style", `{lingerie,bikini}`, nil, time.Now())

	mock.ExpectQuery(`SELECT name, display_name, url, subscribers, accounts_active, over18`).
		WithArgs(24, 50).
		WillReturnRows(rows)

	out, err := s.WorkingSubreddits(context.Background(), 24, 50)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "sample", out[0].Name)
	assert.Equal(t, models.ReviewOk, out[0].Review)
	assert.Equal(t, "Style", out[0].PrimaryCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubreddit_NoRowsReturnsNilWithoutError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT name, display_name, url, subscribers, accounts_active, over18`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"name", "display_name", "url", "subscribers", "accounts_active", "over18",
			"review", "primary_category", "tags", "last_scraped_at", "created_at",
		}))

	out, err := s.GetSubreddit(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubreddit_ExecutesOnConflictUpsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO reddit_subreddits`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	row := models.Subreddit{Name: "sample", DisplayName: "r/sample"}
	err := s.UpsertSubreddit(context.Background(), row)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReview_UpdatesReviewColumn(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE reddit_subreddits SET review = \$2 WHERE name = \$1`).
		WithArgs("sample", string(models.ReviewBanned)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MarkReview(context.Background(), "sample", models.ReviewBanned)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPosts_EmptySliceIsANoOp(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.InsertPosts(context.Background(), nil)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPosts_CommitsOneRowPerPostInsideOneTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO reddit_posts`)
	mock.ExpectExec(`INSERT INTO reddit_posts`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO reddit_posts`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	posts := []models.Post{
		{RedditID: "t3_1", SubredditName: "sample"},
		{RedditID: "t3_2", SubredditName: "sample"},
	}
	err := s.InsertPosts(context.Background(), posts)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueUserWork_DedupesOnConflictDoNothing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO reddit_discovery_queue`)
	mock.ExpectExec(`INSERT INTO reddit_discovery_queue`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.EnqueueUserWork(context.Background(), []string{"some_user"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSubreddits_ReturnsRowCount(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reddit_subreddits`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := s.CountSubreddits(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
