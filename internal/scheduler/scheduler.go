// Package scheduler drives the periodic decision loop. Each cycle gets a
// context that dies at the next tick boundary, so an overrunning cycle is
// abandoned instead of delaying its successors.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"arb-engine/internal/config"
)

// Job is one cycle of work. The context carries the cycle's deadline; a job
// that honours it never bleeds into the next cycle.
type Job func(ctx context.Context, cycle time.Time) error

// Scheduler runs a Job at a fixed cadence.
type Scheduler struct {
	cfg    config.SchedulerConfig
	logger zerolog.Logger
}

// New constructs a Scheduler.
func New(cfg config.SchedulerConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run executes the job until the parent context is cancelled. Job errors are
// logged and the loop continues; only cancellation stops it.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	interval := s.cfg.Interval

	if s.cfg.StartupDelay > 0 {
		if err := sleep(ctx, s.cfg.StartupDelay); err != nil {
			return err
		}
	}
	if s.cfg.AlignToBucket {
		if err := sleep(ctx, time.Until(time.Now().Truncate(interval).Add(interval))); err != nil {
			return err
		}
	}

	s.logger.Info().Dur("interval", interval).Msg("scheduler started")

	for {
		start := time.Now()
		cycle := start
		if s.cfg.AlignToBucket {
			cycle = start.Truncate(interval)
		}
		boundary := start.Add(interval)

		s.runCycle(ctx, job, cycle, boundary)

		if err := ctx.Err(); err != nil {
			s.logger.Info().Msg("scheduler stopped")
			return err
		}
		if err := sleep(ctx, time.Until(boundary)); err != nil {
			s.logger.Info().Msg("scheduler stopped")
			return err
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, job Job, cycle time.Time, boundary time.Time) {
	cycleCtx, cancel := context.WithDeadline(ctx, boundary)
	defer cancel()

	started := time.Now()
	err := job(cycleCtx, cycle)
	elapsed := time.Since(started)

	switch {
	case err == nil:
		s.logger.Debug().
			Time("cycle", cycle).
			Dur("elapsed", elapsed).
			Msg("cycle complete")
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		s.logger.Warn().
			Time("cycle", cycle).
			Dur("elapsed", elapsed).
			Msg("cycle overran its interval and was abandoned")
	case ctx.Err() != nil:
		// Shutdown, not a cycle failure.
	default:
		s.logger.Error().
			Err(err).
			Time("cycle", cycle).
			Dur("elapsed", elapsed).
			Msg("cycle failed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
