package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/scscodes/flsd/internal/infrastructure"
	"github.com/scscodes/flsd/internal/pipeline"
)

// Runner performs one ingestion pass.
type Runner interface {
	RunLatest(ctx context.Context, trigger pipeline.Trigger) (*pipeline.Outcome, error)
}

// Scheduler runs the nightly selector pass on a fixed interval.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger

	// tick returns the channel driving runs; replaced in tests.
	tick func(d time.Duration) (<-chan time.Time, func())
}

// New creates a Scheduler. An interval of zero or less disables it.
func New(runner Runner, interval time.Duration, runOnStart bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With(slog.String("component", "scheduler")),
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Enabled reports whether Run does any work.
func (s *Scheduler) Enabled() bool {
	return s.interval > 0
}

// Run blocks until ctx is done, running a pass every interval. Failed passes
// are logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.InfoContext(ctx, "nightly scheduler disabled")
		return nil
	}

	s.logger.InfoContext(ctx, "nightly scheduler started",
		slog.Duration("interval", s.interval),
		slog.Bool("run_on_start", s.runOnStart))

	if s.runOnStart {
		s.runOnce(ctx)
	}

	ticks, stop := s.tick(s.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "nightly scheduler stopped")
			return nil
		case <-ticks:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	outcome, err := s.runner.RunLatest(ctx, pipeline.TriggerNightly)
	if err != nil {
		s.logger.ErrorContext(ctx, "nightly run failed", slog.String("error", err.Error()))
		return
	}

	attrs := []any{slog.String("status", outcome.Status)}
	if outcome.File != "" {
		attrs = append(attrs, slog.String("file", outcome.File))
	}
	s.logger.InfoContext(ctx, "nightly run finished", attrs...)
}
