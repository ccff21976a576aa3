// Package domain defines the case system writeback rows staged for terminal payments.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/paidleave/internal/errors"
)

// TransactionStatus is the status reported back to the case system for a payment.
type TransactionStatus string

const (
	TransactionStatusMaxWeeklyBenefitsExceeded TransactionStatus = "max_weekly_benefits_exceeded"
	TransactionStatusLeaveDurationMaxExceeded  TransactionStatus = "leave_duration_max_exceeded"
	TransactionStatusPaymentCancelled          TransactionStatus = "payment_cancelled"
	TransactionStatusRelatedPaymentCancelled   TransactionStatus = "related_payment_cancelled"
	TransactionStatusAddressValidationError    TransactionStatus = "address_validation_error"
)

var transactionStatuses = map[TransactionStatus]string{
	TransactionStatusMaxWeeklyBenefitsExceeded: "Max Weekly Benefits Exceeded",
	TransactionStatusLeaveDurationMaxExceeded:  "Leave Duration Max Exceeded",
	TransactionStatusPaymentCancelled:          "Payment Cancelled",
	TransactionStatusRelatedPaymentCancelled:   "Related Payment Cancelled",
	TransactionStatusAddressValidationError:    "Address Validation Error",
}

var (
	// ErrUnknownTransactionStatus indicates a status outside the closed set.
	ErrUnknownTransactionStatus = apperrors.Wrap(apperrors.ErrInvariantViolation, "unknown writeback transaction status")

	// ErrAlreadySent indicates rows another transmission marked sent first.
	ErrAlreadySent = apperrors.Wrap(apperrors.ErrConflict, "writeback already sent")
)

// Validate checks that s is a known status.
func (s TransactionStatus) Validate() error {
	if _, ok := transactionStatuses[s]; !ok {
		return apperrors.Wrapf(ErrUnknownTransactionStatus, "status %q", s)
	}
	return nil
}

// Description is the case system label for s.
func (s TransactionStatus) Description() string {
	return transactionStatuses[s]
}

// WritebackDetail is one status row waiting to be sent to the case system. SentAt is
// set exactly once.
type WritebackDetail struct {
	ID                uuid.UUID
	PaymentID         uuid.UUID
	TransactionStatus TransactionStatus
	BatchRunID        *uuid.UUID
	SentAt            *time.Time
	CreatedAt         time.Time
}

// Sent reports whether the row was transmitted.
func (w *WritebackDetail) Sent() bool {
	return w.SentAt != nil
}

// WritebackAttempt records a transmission the case system did not accept. Attempts are
// written outside the transmission transaction so they survive its rollback.
type WritebackAttempt struct {
	ID           uuid.UUID
	BatchRunID   *uuid.UUID
	RowCount     int
	ErrorMessage string
	AttemptedAt  time.Time
}

// DeliveryError is returned when the transmitter rejects a claimed chunk. The rows stay
// unsent and the error is retryable.
type DeliveryError struct {
	Rows int
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %d writeback rows: %v", e.Rows, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{e.Err, apperrors.ErrRetryable}
}
