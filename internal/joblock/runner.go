package joblock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/paidleave/internal/step"
)

// JobRunner executes a job under one batch run.
type JobRunner interface {
	RunJob(ctx context.Context, job step.Job) (*step.RunContext, error)
}

// Runner runs jobs while holding a lock named after the job's run type.
type Runner struct {
	inner  JobRunner
	locker Locker
	ttl    time.Duration
	logger *slog.Logger
}

// NewRunner creates a Runner. A non-positive ttl defaults to one minute.
func NewRunner(inner JobRunner, locker Locker, ttl time.Duration, logger *slog.Logger) *Runner {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Runner{inner: inner, locker: locker, ttl: ttl, logger: logger}
}

// RunJob obtains the lock, runs the job and releases the lock. The lock is refreshed at
// half its ttl while the job runs; losing it cancels the job's context. A job whose lock
// is held elsewhere is not started and ErrNotObtained is returned.
func (r *Runner) RunJob(ctx context.Context, job step.Job) (*step.RunContext, error) {
	logger := r.logger.With(slog.String("run_type", job.RunType))

	lock, err := r.locker.Obtain(ctx, job.RunType, r.ttl)
	if err != nil {
		return nil, err
	}
	logger.Debug("job lock obtained")

	jobCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.keepAlive(jobCtx, lock, cancel, done, logger)
	}()

	rc, jobErr := r.inner.RunJob(jobCtx, job)

	close(done)
	wg.Wait()
	if cause := context.Cause(jobCtx); errors.Is(cause, ErrLockLost) {
		jobErr = errors.Join(jobErr, cause)
	}
	cancel(nil)

	if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to release job lock", slog.Any("error", err))
	}

	return rc, jobErr
}

func (r *Runner) keepAlive(
	ctx context.Context,
	lock Lock,
	cancel context.CancelCauseFunc,
	done <-chan struct{},
	logger *slog.Logger,
) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, r.ttl); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("job lock refresh failed, cancelling job", slog.Any("error", err))
				cancel(ErrLockLost)
				return
			}
		}
	}
}
