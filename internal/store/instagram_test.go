package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/social-ingest/internal/models"
)

func TestWorkingCreators_ReturnsOnlyEnabledOldestFirst(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"ig_user_id", "username", "followers_count", "following_count", "media_count",
		"niche", "review_status", "profile_pic_url", "enabled",
		"avg_views_per_reel", "avg_engagement_per_post", "engagement_rate",
		"last_scraped_at", "created_at", "updated_at",
	}).AddRow("ig1", "creator_one", 50000, 200, 400, "fitness", "Ok", "", true, 1000.0, 0.05, 0.06, nil, nil, nil)

	mock.ExpectQuery(`SELECT ig_user_id, username, followers_count, following_count, media_count`).
		WillReturnRows(rows)

	out, err := s.WorkingCreators(context.Background())

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "creator_one", out[0].Username)
	assert.True(t, out[0].Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCreator_DoesNotTouchCuratorOwnedColumns(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO instagram_creators`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertCreator(context.Background(), models.InstagramCreator{IGUserID: "ig1", Username: "creator_one"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertReels_EmptySliceIsANoOp(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.UpsertReels(context.Background(), "ig1", nil)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertReels_WritesEachReelInsideOneTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO instagram_reels`)
	mock.ExpectExec(`INSERT INTO instagram_reels`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO instagram_reels`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reels := []models.Reel{{MediaPK: "m1"}, {MediaPK: "m2"}}
	err := s.UpsertReels(context.Background(), "ig1", reels)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPosts_WritesEachPostInsideOneTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO instagram_posts`)
	mock.ExpectExec(`INSERT INTO instagram_posts`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	posts := []models.IGPost{{MediaPK: "m1"}}
	err := s.UpsertPosts(context.Background(), "ig1", posts)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCreator_DuplicateIDReturnsErrCreatorExists(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO instagram_creators \(ig_user_id, username, niche, enabled, created_at, updated_at\)`).
		WithArgs("ig1", "creator_one", "fitness").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateCreator(context.Background(), "ig1", "creator_one", "fitness")

	require.ErrorIs(t, err, ErrCreatorExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFollowerSnapshot_UpsertsOnConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO instagram_follower_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordFollowerSnapshot(context.Background(), models.FollowerSnapshot{CreatorID: "ig1"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
