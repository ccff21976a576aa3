// Package worker runs batch jobs on a fixed interval.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Job is one unit of work run on every tick.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config holds worker configuration.
type Config struct {
	Interval time.Duration
	// RunOnStart runs the jobs once before the first tick.
	RunOnStart bool
}

// Worker runs its jobs in order on every tick. A failed job is logged and does not stop
// the jobs after it or later ticks.
type Worker struct {
	config Config
	jobs   []Job
	logger *slog.Logger
}

// NewWorker creates a new Worker. A non-positive interval defaults to one minute.
func NewWorker(config Config, logger *slog.Logger, jobs ...Job) *Worker {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &Worker{
		config: config,
		jobs:   jobs,
		logger: logger,
	}
}

// Start runs the loop until ctx is cancelled and returns ctx.Err().
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("starting worker",
		slog.Duration("interval", w.config.Interval),
		slog.Int("jobs", len(w.jobs)),
	)

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping worker")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job once and returns how many failed.
func (w *Worker) RunOnce(ctx context.Context) int {
	failed := 0
	for _, job := range w.jobs {
		if ctx.Err() != nil {
			return failed
		}

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			failed++
			w.logger.Error("worker job failed",
				slog.String("job", job.Name),
				slog.Any("error", err),
				slog.Duration("duration", time.Since(start)),
			)
			continue
		}
		w.logger.Info("worker job completed",
			slog.String("job", job.Name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return failed
}
