// Package usecase implements the extract handoff for payments, claims, employees and
// PUB EFT accounts, and assembles post-processing containers with batched queries.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

// EmployeeRepository defines persistence operations for employees.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *paymentDomain.Employee) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Employee, error)
}

// ClaimRepository defines persistence operations for claims.
type ClaimRepository interface {
	Create(ctx context.Context, claim *paymentDomain.Claim) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Claim, error)
	ListByEmployeeIDs(ctx context.Context, employeeIDs []uuid.UUID) ([]*paymentDomain.Claim, error)
}

// PubEFTRepository defines persistence operations for PUB EFT accounts.
type PubEFTRepository interface {
	// Create inserts the account and sets its database-assigned PubIndividualID.
	Create(ctx context.Context, eft *paymentDomain.PubEFT) error
	GetByPubIndividualID(ctx context.Context, pubIndividualID int64) (*paymentDomain.PubEFT, error)
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	// Create inserts the payment and sets its database-assigned PubIndividualID.
	Create(ctx context.Context, payment *paymentDomain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Payment, error)
	GetByPubIndividualID(ctx context.Context, pubIndividualID int64) (*paymentDomain.Payment, error)
	ListByClaimIDs(ctx context.Context, claimIDs []uuid.UUID) ([]*paymentDomain.Payment, error)
	ListByEmployeeIDs(ctx context.Context, employeeIDs []uuid.UUID) ([]*paymentDomain.Payment, error)
}

// ReceiveEmployeeInput contains an employee extracted from the case system.
type ReceiveEmployeeInput struct {
	FineosCustomerNumber string
	FirstName            string
	LastName             string
}

// ReceiveClaimInput contains a claim extracted from the case system.
type ReceiveClaimInput struct {
	EmployeeID             uuid.UUID
	FineosAbsenceID        string
	AbsencePeriodStartDate *time.Time
	AbsencePeriodEndDate   *time.Time
	LeaveRequestDecision   string
}

// ReceivePaymentInput contains a payment extracted from the case system.
type ReceivePaymentInput struct {
	ClaimID         *uuid.UUID
	EmployeeID      *uuid.UUID
	PubEFTID        *uuid.UUID
	FineosPeiCValue string
	FineosPeiIValue string
	PeriodStartDate *time.Time
	PeriodEndDate   *time.Time
	Amount          decimal.Decimal
}

// RegisterPubEFTInput contains a bank account to prenote with PUB.
type RegisterPubEFTInput struct {
	RoutingNbr      string
	AccountNbr      string
	BankAccountType string
}

// PaymentUseCase defines the payment aggregate operations used by the pipeline.
type PaymentUseCase interface {
	// ReceiveEmployee stores an extracted employee.
	ReceiveEmployee(ctx context.Context, input ReceiveEmployeeInput) (*paymentDomain.Employee, error)

	// ReceiveClaim stores an extracted claim and records ClaimExtracted.
	ReceiveClaim(
		ctx context.Context,
		input ReceiveClaimInput,
		batchRunID *uuid.UUID,
	) (*paymentDomain.Claim, error)

	// Receive stores an extracted payment and records PaymentReceived.
	Receive(
		ctx context.Context,
		input ReceivePaymentInput,
		batchRunID *uuid.UUID,
	) (*paymentDomain.Payment, error)

	// RegisterPubEFT stores a bank account and records EFTPendingPrenote.
	RegisterPubEFT(
		ctx context.Context,
		input RegisterPubEFTInput,
		batchRunID *uuid.UUID,
	) (*paymentDomain.PubEFT, error)

	// Get returns a payment by id.
	Get(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error)

	// ListByClaim returns every payment of the claim.
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*paymentDomain.Payment, error)

	// ResolvePubIndividualID maps an "E<n>" or "P<n>" id reported by PUB to the entity it
	// identifies. Malformed text returns ErrInvalidPubIndividualID.
	ResolvePubIndividualID(ctx context.Context, text string) (stateDomain.EntityRef, error)

	// BuildContainers loads the aggregate of every payment referenced by entries with a
	// fixed number of queries. Containers are returned in entry order.
	BuildContainers(
		ctx context.Context,
		entries []*stateDomain.StateLogEntry,
	) ([]*paymentDomain.Container, error)
}
