// Package cleanup implements the Log Cleanup job (C10): batched
// deletion of aged database log rows plus local log file pruning,
// guarded against overlapping runs.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const defaultBatchSize = 1000

// LogRowStore is the narrow DB dependency: counting and batch-deleting
// aged system_logs rows.
type LogRowStore interface {
	CountLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteLogsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// RunLock prevents two cleanup runs from racing against the same
// table, grounded on the teacher's Redis usage: a SET NX EX lock.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const lockKey = "cleanup:running"
const lockTTL = 10 * time.Minute

// DBResult summarizes one database cleanup pass, mirroring the
// original job's return shape (grounded on log_cleanup.py's
// cleanup_old_logs).
type DBResult struct {
	Deleted       int
	RetentionDays int
	Status        string
}

// LocalResult summarizes a local log-file sweep (grounded on
// log_cleanup.py's cleanup_local_log_files).
type LocalResult struct {
	DeletedFiles int
	DeletedBytes int64
	Status       string
	Reason       string
}

// Result is the combined outcome of a full cleanup pass (grounded on
// log_cleanup.py's full_log_cleanup).
type Result struct {
	DB     DBResult
	Local  LocalResult
	Status string
}

// Cleaner runs the log cleanup job.
type Cleaner struct {
	store LogRowStore
	lock  RunLock
}

func New(store LogRowStore, lock RunLock) *Cleaner {
	return &Cleaner{store: store, lock: lock}
}

// Run executes one full cleanup pass: DB rows older than retentionDays
// in batches of batchSize (default 1000), then local log files under
// logDir older than the same retention window. A lock prevents two
// concurrent runs; when the lock cannot be acquired, Run returns a
// skipped result rather than erroring.
func (c *Cleaner) Run(ctx context.Context, logDir string, retentionDays int) (Result, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}

	if c.lock != nil {
		acquired, err := c.lock.Acquire(ctx, lockKey, lockTTL)
		if err != nil {
			log.Warn().Err(err).Msg("log cleanup: lock acquisition failed, proceeding without lock")
		} else if !acquired {
			log.Info().Msg("log cleanup: another run holds the lock, skipping")
			return Result{Status: "skipped"}, nil
		}
		if acquired {
			defer func() {
				if err := c.lock.Release(ctx, lockKey); err != nil {
					log.Warn().Err(err).Msg("log cleanup: lock release failed")
				}
			}()
		}
	}

	dbResult, err := c.cleanupDB(ctx, retentionDays)
	if err != nil {
		return Result{}, err
	}

	localResult := cleanupLocalFiles(logDir, retentionDays)

	status := "success"
	if dbResult.Status != "success" || localResult.Status == "failed" {
		status = "partial"
	}

	log.Info().
		Int("db_deleted", dbResult.Deleted).
		Int("local_deleted_files", localResult.DeletedFiles).
		Str("local_deleted", humanize.Bytes(uint64(localResult.DeletedBytes))).
		Msg("log cleanup: full pass complete")

	return Result{DB: dbResult, Local: localResult, Status: status}, nil
}

func (c *Cleaner) cleanupDB(ctx context.Context, retentionDays int) (DBResult, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	total, err := c.store.CountLogsOlderThan(ctx, cutoff)
	if err != nil {
		return DBResult{RetentionDays: retentionDays, Status: "failed"}, err
	}
	if total == 0 {
		log.Info().Msg("log cleanup: no old logs to delete")
		return DBResult{RetentionDays: retentionDays, Status: "success"}, nil
	}

	log.Info().Int64("total_to_delete", total).Msg("log cleanup: found old log entries")

	deleted := 0
	for int64(deleted) < total {
		batchDeleted, err := c.store.DeleteLogsOlderThan(ctx, cutoff, defaultBatchSize)
		if err != nil {
			return DBResult{Deleted: deleted, RetentionDays: retentionDays, Status: "failed"}, err
		}
		deleted += batchDeleted
		log.Info().Int("batch_deleted", batchDeleted).Int("total", deleted).Int64("expected", total).Msg("log cleanup: deleted batch")
		if batchDeleted == 0 {
			break
		}
	}

	return DBResult{Deleted: deleted, RetentionDays: retentionDays, Status: "success"}, nil
}

func cleanupLocalFiles(logDir string, retentionDays int) LocalResult {
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		log.Warn().Str("log_dir", logDir).Msg("log cleanup: log directory does not exist")
		return LocalResult{Status: "skipped", Reason: "directory_not_found"}
	}

	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		log.Error().Err(err).Str("log_dir", logDir).Msg("log cleanup: failed to list log directory")
		return LocalResult{Status: "failed"}
	}

	var deletedFiles int
	var deletedBytes int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(logDir, entry.Name())
		size := info.Size()
		if err := os.Remove(path); err != nil {
			log.Error().Err(err).Str("file", entry.Name()).Msg("log cleanup: failed to delete log file")
			continue
		}
		deletedFiles++
		deletedBytes += size
		log.Info().Str("file", entry.Name()).Str("size", humanize.Bytes(uint64(size))).Msg("log cleanup: deleted old log file")
	}

	log.Info().Int("deleted_files", deletedFiles).Str("deleted", humanize.Bytes(uint64(deletedBytes))).Msg("log cleanup: local sweep complete")

	return LocalResult{DeletedFiles: deletedFiles, DeletedBytes: deletedBytes, Status: "success"}
}
