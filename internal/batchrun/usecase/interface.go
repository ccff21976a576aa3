// Package usecase implements the batch run tracker.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
)

// BatchRunRepository defines persistence operations for batch runs.
type BatchRunRepository interface {
	// Create inserts a new run.
	Create(ctx context.Context, run *batchrunDomain.BatchRun) error

	// Complete stores the final status, report and end time. Returns
	// ErrBatchRunAlreadyCompleted when the run was already completed.
	Complete(ctx context.Context, run *batchrunDomain.BatchRun) error

	// Get retrieves a run by id.
	Get(ctx context.Context, id uuid.UUID) (*batchrunDomain.BatchRun, error)

	// ListByRunTypeSince returns runs of runType started at or after since, newest first.
	ListByRunTypeSince(ctx context.Context, runType string, since time.Time) ([]*batchrunDomain.BatchRun, error)
}

// BatchRunUseCase tracks pipeline invocations.
type BatchRunUseCase interface {
	// Begin records a new run in progress.
	Begin(ctx context.Context, source, runType string) (*batchrunDomain.BatchRun, error)

	// Complete sets the final status and metrics report. A run is completed exactly once.
	Complete(
		ctx context.Context,
		run *batchrunDomain.BatchRun,
		status batchrunDomain.Status,
		report map[string]int64,
	) error

	// Get retrieves a run by id.
	Get(ctx context.Context, id uuid.UUID) (*batchrunDomain.BatchRun, error)

	// WasProcessedWithinBusinessDays reports whether a run of runType recorded a positive
	// count for metric within the trailing businessDays business days.
	WasProcessedWithinBusinessDays(ctx context.Context, runType, metric string, businessDays int) (bool, error)
}
