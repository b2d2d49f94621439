// Package scheduler runs the cron-driven background jobs: the stale session
// sweep and the optional automatic dispatch loop.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/gobotctl/internal/config"
	"github.com/jonesrussell/gobotctl/internal/dispatch"
	"github.com/jonesrussell/gobotctl/internal/logger"
)

const jobTimeout = 2 * time.Minute

type staleSweeper interface {
	CleanupStale(ctx context.Context) (int64, error)
}

type entryDispatcher interface {
	Dispatch(ctx context.Context) (*dispatch.Result, error)
}

// Scheduler owns the cron runner. Jobs are registered at construction time
// from the configured specs; an empty spec disables that job.
type Scheduler struct {
	cron       *cron.Cron
	sessions   staleSweeper
	dispatcher entryDispatcher
	logger     logger.Logger
}

func New(cfg config.SchedulerConfig, sessions staleSweeper, dispatcher entryDispatcher, log logger.Logger) (*Scheduler, error) {
	// Standard 5-field cron parser (minute hour day month weekday)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	s := &Scheduler{
		cron:       c,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     log,
	}

	if cfg.StaleSweepSpec != "" {
		if _, err := c.AddFunc(cfg.StaleSweepSpec, s.sweepStale); err != nil {
			return nil, fmt.Errorf("register stale sweep %q: %w", cfg.StaleSweepSpec, err)
		}
	}
	if cfg.AutoDispatchSpec != "" {
		if _, err := c.AddFunc(cfg.AutoDispatchSpec, s.autoDispatch); err != nil {
			return nil, fmt.Errorf("register auto dispatch %q: %w", cfg.AutoDispatchSpec, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started")
	s.cron.Start()
}

// Stop halts the cron runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) sweepStale() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	swept, err := s.sessions.CleanupStale(ctx)
	if err != nil {
		s.logger.Error("Scheduled stale sweep failed", logger.Error(err))
		return
	}
	if swept > 0 {
		s.logger.Info("Scheduled stale sweep completed", logger.Int64("swept", swept))
	}
}

func (s *Scheduler) autoDispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.dispatcher.Dispatch(ctx)
	if err != nil {
		s.logger.Error("Scheduled dispatch failed", logger.Error(err))
		return
	}
	if result.Dispatched > 0 {
		s.logger.Info("Scheduled dispatch completed",
			logger.Int("dispatched", result.Dispatched),
			logger.Int("batches", result.Batches),
		)
	}
}
