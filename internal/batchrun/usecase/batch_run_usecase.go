package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// batchRunUseCase implements BatchRunUseCase.
type batchRunUseCase struct {
	txManager database.TxManager
	repo      BatchRunRepository
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewBatchRunUseCase creates a new BatchRunUseCase. Business days are evaluated as
// calendar dates in location.
func NewBatchRunUseCase(
	txManager database.TxManager,
	repo BatchRunRepository,
	location *time.Location,
	logger *slog.Logger,
) BatchRunUseCase {
	if location == nil {
		location = time.UTC
	}
	return &batchRunUseCase{
		txManager: txManager,
		repo:      repo,
		location:  location,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Begin inserts the run in its own transaction so it survives a rollback of the step.
func (b *batchRunUseCase) Begin(ctx context.Context, source, runType string) (*batchrunDomain.BatchRun, error) {
	if source == "" || runType == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "batch run source and run type are required")
	}

	run := &batchrunDomain.BatchRun{
		ID:            uuid.Must(uuid.NewV7()),
		Source:        source,
		RunType:       runType,
		Status:        batchrunDomain.StatusInProgress,
		MetricsReport: map[string]int64{},
		StartedAt:     b.now(),
	}

	err := b.txManager.WithNewTx(ctx, func(ctx context.Context) error {
		return b.repo.Create(ctx, run)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to begin batch run")
	}

	b.logger.Info("batch run started",
		slog.String("batch_run_id", run.ID.String()),
		slog.String("source", source),
		slog.String("run_type", runType),
	)

	return run, nil
}

// Complete stores the final status in its own transaction.
func (b *batchRunUseCase) Complete(
	ctx context.Context,
	run *batchrunDomain.BatchRun,
	status batchrunDomain.Status,
	report map[string]int64,
) error {
	if !status.IsFinal() {
		return fmt.Errorf("%w: %q", batchrunDomain.ErrInvalidStatus, status)
	}
	if run.Completed() {
		return batchrunDomain.ErrBatchRunAlreadyCompleted
	}

	endedAt := b.now()
	completed := *run
	completed.Status = status
	completed.MetricsReport = maps.Clone(report)
	if completed.MetricsReport == nil {
		completed.MetricsReport = map[string]int64{}
	}
	completed.EndedAt = &endedAt

	err := b.txManager.WithNewTx(ctx, func(ctx context.Context) error {
		return b.repo.Complete(ctx, &completed)
	})
	if err != nil {
		return err
	}

	*run = completed

	b.logger.Info("batch run completed",
		slog.String("batch_run_id", run.ID.String()),
		slog.String("run_type", run.RunType),
		slog.String("status", string(status)),
		slog.Any("metrics_report", run.MetricsReport),
		slog.Duration("duration", endedAt.Sub(run.StartedAt)),
	)

	return nil
}

// Get retrieves a run by id.
func (b *batchRunUseCase) Get(ctx context.Context, id uuid.UUID) (*batchrunDomain.BatchRun, error) {
	return b.repo.Get(ctx, id)
}

// WasProcessedWithinBusinessDays prefilters candidate runs in SQL with a calendar
// lookback and applies the weekday mask in Go.
func (b *batchRunUseCase) WasProcessedWithinBusinessDays(
	ctx context.Context,
	runType, metric string,
	businessDays int,
) (bool, error) {
	if businessDays < 0 {
		return false, apperrors.Wrapf(apperrors.ErrInvalidInput, "business days must not be negative, got %d", businessDays)
	}

	now := b.now()
	runs, err := b.repo.ListByRunTypeSince(ctx, runType, batchrunDomain.LookbackStart(now, businessDays, b.location))
	if err != nil {
		return false, apperrors.Wrap(err, "failed to list batch runs")
	}

	for _, run := range runs {
		if run.Metric(metric) <= 0 {
			continue
		}
		if batchrunDomain.BusinessDaysBetween(run.StartedAt, now, b.location) <= businessDays {
			b.logger.Info("metric already processed",
				slog.String("run_type", runType),
				slog.String("metric", metric),
				slog.String("batch_run_id", run.ID.String()),
				slog.Time("started_at", run.StartedAt),
			)
			return true, nil
		}
	}

	return false, nil
}
