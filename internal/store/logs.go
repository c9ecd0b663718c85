package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// InsertLogs implements logging.LogStore: a single batch insert of
// structured log rows flushed by the zerolog DB sink.
func (s *Store) InsertLogs(ctx context.Context, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	const query = `
		INSERT INTO system_logs (
			timestamp, source, script_name, level, message, context, action, duration_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	return s.withTx(ctx, query, func(stmt *sql.Stmt) error {
		for _, e := range entries {
			contextRaw, err := json.Marshal(e.Context)
			if err != nil {
				return fmt.Errorf("encode log context: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				e.Timestamp, e.Source, e.ScriptName, string(e.Level), e.Message, contextRaw, e.Action, e.DurationMS,
			)
			if err != nil {
				return fmt.Errorf("insert log row: %w", err)
			}
		}
		return nil
	})
}

// CountLogsOlderThan implements cleanup.LogRowStore.
func (s *Store) CountLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM system_logs WHERE timestamp < $1`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count old logs: %w", err)
	}
	return count, nil
}

// DeleteLogsOlderThan implements cleanup.LogRowStore: deletes up to
// limit rows in one statement, matching log_cleanup.py's batched
// DELETE ... LIMIT pattern via a subquery (Postgres DELETE has no
// native LIMIT clause).
func (s *Store) DeleteLogsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	const query = `
		DELETE FROM system_logs
		WHERE id IN (
			SELECT id FROM system_logs WHERE timestamp < $1 ORDER BY id LIMIT $2
		)
	`
	result, err := s.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete old logs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old logs rows affected: %w", err)
	}
	return int(affected), nil
}
