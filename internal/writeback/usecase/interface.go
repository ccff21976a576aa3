// Package usecase stages case system writeback rows and hands unsent rows to a
// transmitter, adapting the transactional outbox pattern.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// WritebackRepository defines persistence operations for writeback rows.
type WritebackRepository interface {
	// Create inserts an unsent row.
	Create(ctx context.Context, detail *writebackDomain.WritebackDetail) error

	// ClaimUnsent locks up to limit unsent rows, oldest first, skipping rows locked by
	// another transmission.
	ClaimUnsent(ctx context.Context, limit int) ([]*writebackDomain.WritebackDetail, error)

	// MarkSent sets sent_at on the rows that are still unsent and returns how many were updated.
	MarkSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) (int64, error)

	// CreateAttempt inserts a failed transmission attempt.
	CreateAttempt(ctx context.Context, attempt *writebackDomain.WritebackAttempt) error
}

// Transmitter delivers writeback rows to the case system. Implementations are
// external collaborators: a file drop, an API client or a log sink.
type Transmitter interface {
	Transmit(ctx context.Context, details []*writebackDomain.WritebackDetail) error
}

// TransmitResult summarizes one transmission.
type TransmitResult struct {
	Sent int
}

// WritebackUseCase stages and transmits writeback rows.
type WritebackUseCase interface {
	// Stage inserts an unsent row and records WritebackAdded for the payment. Joins the
	// transaction carried by ctx.
	Stage(
		ctx context.Context,
		paymentID uuid.UUID,
		status writebackDomain.TransactionStatus,
		batchRunID *uuid.UUID,
	) (*writebackDomain.WritebackDetail, error)

	// Transmit claims up to one batch of unsent rows, delivers them and marks them sent,
	// recording WritebackSent for each payment. Nothing is marked when delivery fails and
	// the error is a *writebackDomain.DeliveryError.
	Transmit(ctx context.Context, transmitter Transmitter, batchRunID *uuid.UUID) (*TransmitResult, error)

	// RecordFailedAttempt stores a rejected delivery. Callers run it outside the
	// transmission transaction.
	RecordFailedAttempt(
		ctx context.Context,
		delivery *writebackDomain.DeliveryError,
		batchRunID *uuid.UUID,
	) (*writebackDomain.WritebackAttempt, error)
}
