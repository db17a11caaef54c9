// Package scheduler drives the periodic automatic actions of the queue:
// auto-skipping expired calls and terminating sessions past their end
// time.  It is a thin ticker around the engine's Sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/monitoring"
)

// DefaultInterval is how often the sweep runs.
const DefaultInterval = 10 * time.Second

type Scheduler struct {
	engine   *engine.Engine
	interval time.Duration
	log      zerolog.Logger
}

func New(eng *engine.Engine, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{engine: eng, interval: interval, log: log}
}

// Run sweeps on every tick until the context is cancelled.  It blocks,
// so callers start it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	report := s.engine.Sweep(ctx)
	monitoring.ObserveSweep(time.Since(start).Seconds(),
		report.AutoSkipped, report.AutoCalled, report.Finished)

	for _, err := range report.Errs {
		s.log.Error().Err(err).Msg("sweep action failed")
	}
	if report.AutoSkipped > 0 || report.Finished > 0 {
		s.log.Info().
			Int("checked", report.Checked).
			Int("auto_skipped", report.AutoSkipped).
			Int("auto_called", report.AutoCalled).
			Int("finished", report.Finished).
			Msg("sweep applied automatic actions")
	}
}
