package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// GetControlRow implements control.Store: read one scraper's control
// row, decoding its free-form config JSON column.
func (s *Store) GetControlRow(ctx context.Context, name string) (*models.ControlRow, error) {
	const query = `
		SELECT name, enabled, status, last_heartbeat, last_error, pid, config, updated_by, updated_at
		FROM system_control
		WHERE name = $1
	`
	var row models.ControlRow
	var status string
	var configRaw []byte
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&row.Name, &row.Enabled, &status, &row.LastHeartbeat, &row.LastError, &row.PID, &configRaw,
		&row.UpdatedBy, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ControlRow{Name: name, Status: models.StatusIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get control row %s: %w", name, err)
	}
	row.Status = models.ScraperStatus(status)

	if len(configRaw) > 0 {
		if err := json.Unmarshal(configRaw, &row.Config); err != nil {
			return nil, fmt.Errorf("decode control config %s: %w", name, err)
		}
	}
	return &row, nil
}

// SetStatus implements control.Store, advancing a scraper's state
// machine column and recording its last error (spec §4.5).
func (s *Store) SetStatus(ctx context.Context, name string, status models.ScraperStatus, lastError string) error {
	const query = `
		INSERT INTO system_control (name, status, last_error, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO UPDATE SET
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, name, string(status), lastError); err != nil {
		return fmt.Errorf("set status %s: %w", name, err)
	}
	return nil
}

// Heartbeat implements control.Store, recording that a scraper process
// is still alive under the given PID.
func (s *Store) Heartbeat(ctx context.Context, name string, pid int) error {
	const query = `
		INSERT INTO system_control (name, pid, last_heartbeat, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			pid = EXCLUDED.pid,
			last_heartbeat = NOW(),
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, name, pid); err != nil {
		return fmt.Errorf("heartbeat %s: %w", name, err)
	}
	return nil
}

// GetControlConfig implements config.ControlConfigReader: the per-
// scraper override block curators can set from the control row without
// redeploying (spec §4.2's DB-over-env precedence).
func (s *Store) GetControlConfig(ctx context.Context, scraperName string) (map[string]any, error) {
	row, err := s.GetControlRow(ctx, scraperName)
	if err != nil {
		return nil, err
	}
	return row.Config, nil
}

// EnableScraper and DisableScraper back the supplemented
// /api/control/:scraper/start|stop endpoints.
func (s *Store) EnableScraper(ctx context.Context, name string) error {
	const query = `
		INSERT INTO system_control (name, enabled, updated_at)
		VALUES ($1, true, NOW())
		ON CONFLICT (name) DO UPDATE SET enabled = true, updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, name)
	return err
}

func (s *Store) DisableScraper(ctx context.Context, name string) error {
	const query = `
		INSERT INTO system_control (name, enabled, updated_at)
		VALUES ($1, false, NOW())
		ON CONFLICT (name) DO UPDATE SET enabled = false, updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, name)
	return err
}
