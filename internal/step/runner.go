package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	batchrunUsecase "github.com/allisson/paidleave/internal/batchrun/usecase"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	"github.com/allisson/paidleave/internal/metrics"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// RunContext carries one batch run across the steps executed in it.
type RunContext struct {
	Source  string
	RunType string
	Run     *batchrunDomain.BatchRun

	report *Metrics
	failed bool
}

// NewRunContext creates a run context without a batch run; the first step run through
// it begins one.
func NewRunContext(source, runType string) *RunContext {
	return &RunContext{Source: source, RunType: runType, report: NewMetrics()}
}

// Report returns the counters merged from every successful step so far.
func (rc *RunContext) Report() map[string]int64 {
	return rc.report.Snapshot()
}

// Failed reports whether any step run in this context has failed.
func (rc *RunContext) Failed() bool {
	return rc.failed
}

// Job is an ordered list of steps executed in a single batch run.
type Job struct {
	Source  string
	RunType string
	Steps   []Step

	// ContinueOnError runs the remaining steps after a failed one. Fatal errors always
	// abort the job.
	ContinueOnError bool
}

// Runner executes steps with run tracking and failure isolation.
type Runner struct {
	txManager    database.TxManager
	batchRuns    batchrunUsecase.BatchRunUseCase
	batchMetrics metrics.BatchMetrics
	logger       *slog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(
	txManager database.TxManager,
	batchRuns batchrunUsecase.BatchRunUseCase,
	batchMetrics metrics.BatchMetrics,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		txManager:    txManager,
		batchRuns:    batchRuns,
		batchMetrics: batchMetrics,
		logger:       logger,
	}
}

// Run executes s inside one transaction. When rc holds no batch run, one is begun and
// completed by this call. On success the step's counters are merged into the run report;
// on failure the transaction is rolled back, the run is marked as failed and the error
// is returned unchanged. The step's own counters are returned in both cases.
func (r *Runner) Run(ctx context.Context, rc *RunContext, s Step) (*Metrics, error) {
	owned := rc.Run == nil
	if owned {
		run, err := r.batchRuns.Begin(ctx, rc.Source, rc.RunType)
		if err != nil {
			return nil, err
		}
		rc.Run = run
	}

	logger := r.logger.With(
		slog.String("batch_run_id", rc.Run.ID.String()),
		slog.String("run_type", rc.RunType),
		slog.String("step", s.Name()),
	)
	sc := NewContext(rc.Run, logger, r.txManager)

	logger.Info("step started")
	start := time.Now()

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.RunStep(ctx, sc)
	})
	duration := time.Since(start)

	if err != nil {
		rc.failed = true
		r.batchMetrics.RecordStep(ctx, rc.RunType, s.Name(), statusError, duration)
		logger.Error("step failed",
			slog.Any("error", err),
			slog.Bool("fatal", apperrors.IsFatal(err)),
			slog.Bool("retryable", apperrors.IsRetryable(err)),
			slog.Any("discarded_metrics", sc.Metrics.Snapshot()),
			slog.Duration("duration", duration),
		)
		if owned {
			if completeErr := r.Complete(ctx, rc); completeErr != nil {
				return sc.Metrics, errors.Join(err, completeErr)
			}
		}
		return sc.Metrics, err
	}

	rc.report.Merge(sc.Metrics)
	r.batchMetrics.RecordStep(ctx, rc.RunType, s.Name(), statusSuccess, duration)
	r.batchMetrics.RecordCounters(ctx, rc.RunType, s.Name(), sc.Metrics.Snapshot())
	logger.Info("step completed",
		slog.Any("metrics", sc.Metrics.Snapshot()),
		slog.Duration("duration", duration),
	)

	if owned {
		if err := r.Complete(ctx, rc); err != nil {
			return sc.Metrics, err
		}
	}

	return sc.Metrics, nil
}

// Complete completes the batch run of rc with error status when any step failed and
// success otherwise. The run is completed even when ctx is already cancelled.
func (r *Runner) Complete(ctx context.Context, rc *RunContext) error {
	if rc.Run == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "run context has no batch run")
	}
	status := batchrunDomain.StatusSuccess
	if rc.failed {
		status = batchrunDomain.StatusError
	}
	return r.batchRuns.Complete(context.WithoutCancel(ctx), rc.Run, status, rc.report.Snapshot())
}

// RunJob executes the job's steps in order under one batch run and completes it exactly
// once. The returned error joins every step failure.
func (r *Runner) RunJob(ctx context.Context, job Job) (*RunContext, error) {
	rc := NewRunContext(job.Source, job.RunType)
	run, err := r.batchRuns.Begin(ctx, job.Source, job.RunType)
	if err != nil {
		return rc, err
	}
	rc.Run = run

	var errs []error
	for _, s := range job.Steps {
		if _, err := r.Run(ctx, rc, s); err != nil {
			errs = append(errs, fmt.Errorf("step %s: %w", s.Name(), err))
			if !job.ContinueOnError || apperrors.IsFatal(err) {
				break
			}
		}
	}

	jobErr := errors.Join(errs...)
	if err := r.Complete(ctx, rc); err != nil {
		return rc, errors.Join(jobErr, err)
	}

	return rc, jobErr
}
