package store

import (
	"context"
	"fmt"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// ListEnabledProxies implements proxy.ProxyLoader: the rotation pool's
// seed set, reloaded on each process start (spec §4.2).
func (s *Store) ListEnabledProxies(ctx context.Context) ([]models.Proxy, error) {
	const query = `
		SELECT id, endpoint, display_name, enabled, success_count, failure_count, last_ok_at
		FROM proxies
		WHERE enabled = true
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled proxies: %w", err)
	}
	defer rows.Close()

	var out []models.Proxy
	for rows.Next() {
		var p models.Proxy
		if err := rows.Scan(&p.ID, &p.Endpoint, &p.DisplayName, &p.Enabled, &p.SuccessCount, &p.FailureCount, &p.LastOKAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SyncProxyHealth persists the pool's in-memory counters back to the
// proxies table, called periodically so health survives a restart.
func (s *Store) SyncProxyHealth(ctx context.Context, p models.Proxy) error {
	const query = `
		UPDATE proxies SET success_count = $2, failure_count = $3, last_ok_at = $4
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.SuccessCount, p.FailureCount, p.LastOKAt)
	if err != nil {
		return fmt.Errorf("sync proxy health %s: %w", p.ID, err)
	}
	return nil
}
