// Package scheduler drives periodic mailbox sweeps.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"intake_server/core/port/in"
	"intake_server/pkg/logger"
)

// DefaultInterval is how often the sweep runs when not configured.
const DefaultInterval = 5 * time.Minute

// Scheduler triggers a full sweep on a fixed interval. A tick that fires
// while the previous sweep is still running is skipped, never queued.
type Scheduler struct {
	service  in.IntakeService
	interval time.Duration
	log      *logger.Logger
	running  atomic.Bool
}

// New creates a Scheduler.
func New(service in.IntakeService, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.Default()
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		log:      log,
	}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started: sweeping every %s", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	stats, err := s.service.RunAll(ctx)
	if err != nil {
		s.log.WithError(err).Error("scheduled sweep failed")
		return
	}

	s.log.WithDuration(time.Since(start)).Info(
		"scheduled sweep finished: processed=%d flagged=%d skipped=%d discarded=%d errors=%d",
		stats.Processed, stats.Flagged, stats.Skipped, stats.Discarded, stats.Errors)
}
