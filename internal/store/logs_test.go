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

func TestInsertLogs_EmptySliceIsANoOp(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.InsertLogs(context.Background(), nil)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogs_BatchesEveryEntryInOneTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO system_logs`)
	mock.ExpectExec(`INSERT INTO system_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO system_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entries := []models.LogEntry{
		{Timestamp: time.Now(), Source: "reddit_subreddit_scraper", Level: models.LevelInfo, Message: "cycle started"},
		{Timestamp: time.Now(), Source: "reddit_subreddit_scraper", Level: models.LevelError, Message: "fetch failed"},
	}
	err := s.InsertLogs(context.Background(), entries)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountLogsOlderThan_ReturnsCount(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM system_logs WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1500))

	count, err := s.CountLogsOlderThan(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(1500), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteLogsOlderThan_ReturnsRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM system_logs`).
		WithArgs(cutoff, 1000).
		WillReturnResult(sqlmock.NewResult(0, 1000))

	deleted, err := s.DeleteLogsOlderThan(context.Background(), cutoff, 1000)

	require.NoError(t, err)
	assert.Equal(t, 1000, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
