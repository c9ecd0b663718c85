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

func TestListEnabledProxies_ReturnsOnlyEnabledRows(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "endpoint", "display_name", "enabled", "success_count", "failure_count", "last_ok_at",
	}).AddRow("p1", "proxy.example:8080", "Proxy One", true, 10, 2, nil)

	mock.ExpectQuery(`SELECT id, endpoint, display_name, enabled, success_count, failure_count, last_ok_at`).
		WillReturnRows(rows)

	out, err := s.ListEnabledProxies(context.Background())

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].ID)
	assert.True(t, out[0].Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncProxyHealth_UpdatesCounters(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE proxies SET success_count = \$2, failure_count = \$3, last_ok_at = \$4`).
		WithArgs("p1", int64(11), int64(2), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SyncProxyHealth(context.Background(), models.Proxy{
		ID: "p1", SuccessCount: 11, FailureCount: 2, LastOKAt: &now,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
