// Package control implements the Control Plane (C5): the state
// machine every scraper process obeys over its control row, plus the
// heartbeat loop external supervisors use to detect dead processes.
package control

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// Store is the narrow DB dependency: reading/writing one scraper's
// control row.
type Store interface {
	GetControlRow(ctx context.Context, name string) (*models.ControlRow, error)
	SetStatus(ctx context.Context, name string, status models.ScraperStatus, lastError string) error
	Heartbeat(ctx context.Context, name string, pid int) error
}

// Cycle is one unit of scraper work: a full pass over its working set.
// Supervisor calls it repeatedly while running, passing enabled so the
// cycle's own item loop can re-check the control row's flag instead of
// only discovering disablement at the next cycle boundary.
type Cycle func(ctx context.Context, enabled func() bool) error

// Init resolves configuration and loads/probes proxies before the
// first cycle. Returning an error transitions straight to error.
type Init func(ctx context.Context) error

// Supervisor drives one scraper process through idle→starting→
// running→stopping→stopped/error (spec §4.5).
type Supervisor struct {
	name              string
	store             Store
	init              Init
	cycle             Cycle
	heartbeatInterval time.Duration
	enabledFlag       atomic.Bool
}

func NewSupervisor(name string, store Store, init Init, cycle Cycle, heartbeatInterval time.Duration) *Supervisor {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Supervisor{name: name, store: store, init: init, cycle: cycle, heartbeatInterval: heartbeatInterval}
}

// Run blocks until ctx is cancelled or the control row's enabled flag
// goes false, driving the full state machine exactly once per call
// (callers that want to idle-poll for enable=true wrap Run in a loop).
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.store.SetStatus(ctx, s.name, models.StatusStarting, ""); err != nil {
		return err
	}

	if s.init != nil {
		if err := s.init(ctx); err != nil {
			log.Error().Err(err).Str("scraper", s.name).Msg("supervisor: init failed")
			_ = s.store.SetStatus(ctx, s.name, models.StatusError, err.Error())
			return err
		}
	}

	if err := s.store.SetStatus(ctx, s.name, models.StatusRunning, ""); err != nil {
		return err
	}

	s.enabledFlag.Store(true)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go s.heartbeatLoop(heartbeatCtx)

	for {
		row, err := s.store.GetControlRow(ctx, s.name)
		if err != nil {
			log.Error().Err(err).Str("scraper", s.name).Msg("supervisor: control row read failed")
		} else if !row.Enabled {
			return s.stop(ctx)
		} else {
			s.enabledFlag.Store(true)
		}

		if err := s.cycle(ctx, s.Enabled); err != nil {
			log.Error().Err(err).Str("scraper", s.name).Msg("supervisor: cycle failed, continuing")
		}

		select {
		case <-ctx.Done():
			return s.stop(ctx)
		default:
		}
	}
}

// Enabled reports the most recently observed control-row flag,
// refreshed at every cycle boundary and every heartbeat tick. Cycle
// implementations poll this between items so a mid-batch disable is
// observed well before the batch finishes, instead of only at the
// next full cycle's boundary.
func (s *Supervisor) Enabled() bool {
	return s.enabledFlag.Load()
}

func (s *Supervisor) stop(ctx context.Context) error {
	if err := s.store.SetStatus(ctx, s.name, models.StatusStopping, ""); err != nil {
		return err
	}
	// Drain is implicit: the caller's in-flight cycle already returned
	// before Run observes enabled=false, so there is nothing further
	// to await here.
	return s.store.SetStatus(ctx, s.name, models.StatusStopped, "")
}

func (s *Supervisor) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()
	pid := os.Getpid()

	for {
		select {
		case <-ticker.C:
			if err := s.store.Heartbeat(ctx, s.name, pid); err != nil {
				log.Warn().Err(err).Str("scraper", s.name).Msg("supervisor: heartbeat write failed")
			}
			if row, err := s.store.GetControlRow(ctx, s.name); err != nil {
				log.Warn().Err(err).Str("scraper", s.name).Msg("supervisor: control row refresh failed")
			} else {
				s.enabledFlag.Store(row.Enabled)
			}
		case <-ctx.Done():
			return
		}
	}
}
