// Package store is the PostgreSQL persistence layer: a row-oriented
// client over database/sql + lib/pq implementing the narrow storage
// interfaces declared by internal/reddit, internal/instagram,
// internal/categorizer, internal/cleanup, internal/control,
// internal/config, and internal/logging.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Store wraps the shared connection pool. Every query method hangs
// off this type so callers only construct one pool per process,
// matching the teacher's single package-level *sql.DB.
type Store struct {
	db *sql.DB
}

// Open establishes the connection pool, matching the teacher's
// pool-sizing constants (pkg/database/connection.go): 25 max open, 5
// max idle, 5-minute max lifetime.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("database connection established")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Healthy reports whether the pool can still reach Postgres, used by
// the /ready API handler.
func (s *Store) Healthy(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
