package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// Config holds writeback use case configuration.
type Config struct {
	BatchSize int
}

// writebackUseCase implements WritebackUseCase.
type writebackUseCase struct {
	config    Config
	txManager database.TxManager
	repo      WritebackRepository
	stateLogs stateUseCase.StateLogUseCase
	logger    *slog.Logger
	now       func() time.Time
}

// NewWritebackUseCase creates a new WritebackUseCase.
func NewWritebackUseCase(
	config Config,
	txManager database.TxManager,
	repo WritebackRepository,
	stateLogs stateUseCase.StateLogUseCase,
	logger *slog.Logger,
) WritebackUseCase {
	return &writebackUseCase{
		config:    config,
		txManager: txManager,
		repo:      repo,
		stateLogs: stateLogs,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Stage inserts the row and moves the payment to WritebackAdded in the same transaction.
func (w *writebackUseCase) Stage(
	ctx context.Context,
	paymentID uuid.UUID,
	status writebackDomain.TransactionStatus,
	batchRunID *uuid.UUID,
) (*writebackDomain.WritebackDetail, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}

	detail := &writebackDomain.WritebackDetail{
		ID:                uuid.Must(uuid.NewV7()),
		PaymentID:         paymentID,
		TransactionStatus: status,
		BatchRunID:        batchRunID,
		CreatedAt:         w.now(),
	}

	err := w.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := w.repo.Create(ctx, detail); err != nil {
			return err
		}
		_, err := w.stateLogs.RecordTransition(
			ctx,
			stateDomain.PaymentRef(paymentID),
			stateDomain.FlowCaseWriteback,
			stateDomain.WritebackAdded,
			stateDomain.Outcome("Added to case system writeback", map[string]any{
				"transaction_status": string(status),
			}),
			batchRunID,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// Transmit runs claim, deliver and mark in one transaction so locked rows are released
// unsent when delivery fails.
func (w *writebackUseCase) Transmit(
	ctx context.Context,
	transmitter Transmitter,
	batchRunID *uuid.UUID,
) (*TransmitResult, error) {
	result := &TransmitResult{}

	err := w.txManager.WithTx(ctx, func(ctx context.Context) error {
		details, err := w.repo.ClaimUnsent(ctx, w.config.BatchSize)
		if err != nil {
			return err
		}
		if len(details) == 0 {
			return nil
		}

		w.logger.Info("transmitting writeback rows", slog.Int("count", len(details)))

		if err := transmitter.Transmit(ctx, details); err != nil {
			return &writebackDomain.DeliveryError{Rows: len(details), Err: err}
		}

		sentAt := w.now()
		ids := make([]uuid.UUID, len(details))
		for i, detail := range details {
			ids[i] = detail.ID
		}

		updated, err := w.repo.MarkSent(ctx, ids, sentAt)
		if err != nil {
			return err
		}
		if updated != int64(len(ids)) {
			return apperrors.Wrapf(writebackDomain.ErrAlreadySent, "marked %d of %d rows", updated, len(ids))
		}

		for _, detail := range details {
			detail.SentAt = &sentAt
			_, err := w.stateLogs.CreateFinishedTransition(
				ctx,
				stateDomain.PaymentRef(detail.PaymentID),
				stateDomain.FlowCaseWriteback,
				stateDomain.WritebackSent,
				stateDomain.Outcome("Case system writeback sent", map[string]any{
					"transaction_status": string(detail.TransactionStatus),
				}),
				batchRunID,
			)
			if err != nil {
				return err
			}
		}

		result.Sent = len(details)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RecordFailedAttempt inserts the attempt in whatever transaction ctx carries.
func (w *writebackUseCase) RecordFailedAttempt(
	ctx context.Context,
	delivery *writebackDomain.DeliveryError,
	batchRunID *uuid.UUID,
) (*writebackDomain.WritebackAttempt, error) {
	attempt := &writebackDomain.WritebackAttempt{
		ID:           uuid.Must(uuid.NewV7()),
		BatchRunID:   batchRunID,
		RowCount:     delivery.Rows,
		ErrorMessage: delivery.Err.Error(),
		AttemptedAt:  w.now(),
	}

	if err := w.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	w.logger.Warn("writeback delivery failed",
		slog.Int("rows", attempt.RowCount),
		slog.String("error", attempt.ErrorMessage),
	)
	return attempt, nil
}
