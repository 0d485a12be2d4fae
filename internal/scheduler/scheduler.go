// Package scheduler runs periodic background jobs one at a time.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"puzzlemarket/internal/service"
)

// ErrBusy is returned by RunOnce while a previous run is still in progress.
var ErrBusy = errors.New("job already running")

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Runner executes a Job on a fixed interval. Runs never overlap within a
// process; cross-process exclusion is the job's concern.
type Runner struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger
	running  atomic.Bool
	runs     atomic.Int64
}

// NewRunner builds a Runner. A non-positive interval falls back to one minute.
func NewRunner(name string, interval time.Duration, job Job, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{name: name, interval: interval, job: job, logger: logger}
}

// Run executes the job immediately and then on every tick until ctx is
// cancelled. Failed runs are logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "scheduler started",
		slog.String("job", r.name),
		slog.Duration("interval", r.interval),
	)
	for {
		if err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "scheduled run failed",
				slog.String("job", r.name),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler stopped", slog.String("job", r.name))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes the job a single time, or returns ErrBusy when a run is
// already in progress.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.running.Store(false)

	r.runs.Add(1)
	return r.job(ctx)
}

// Runs reports how many times the job has been started.
func (r *Runner) Runs() int64 {
	return r.runs.Load()
}

// DigestJob adapts a digest sweep to a Job. A sweep already held by another
// worker is not an error. The sweep logs its own report.
func DigestJob(digests *service.DigestService, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) error {
		_, err := digests.Sweep(ctx)
		if service.IsLockHeld(err) {
			logger.InfoContext(ctx, "digest sweep skipped, lock held elsewhere")
			return nil
		}
		return err
	}
}
