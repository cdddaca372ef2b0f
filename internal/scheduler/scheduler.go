package scheduler

import (
	"context"
	"log/slog"
	"time"

	"nepal_jobs/internal/domain"
)

// Runner defines the interface for one pipeline run.
type Runner interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
}

type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start runs immediately and then on every tick until ctx is done. A failed
// run is logged and retried on the next tick only.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "run_timeout", s.runTimeout)

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	summary, err := s.runner.Run(runCtx)
	if err != nil {
		s.logger.Error("run failed", "error", err)
		return
	}
	s.logger.Info("run finished", "stored", summary.Stored(), "next_run_in", s.interval)
}
