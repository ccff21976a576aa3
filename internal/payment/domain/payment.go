// Package domain defines the payment aggregate processed by the payment pipeline:
// employees, claims, payments, PUB EFT accounts and the post-processing container.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/paidleave/internal/errors"
)

// Leave request decisions reported by the case system.
const (
	LeaveRequestDecisionApproved = "Approved"
	LeaveRequestDecisionInReview = "In Review"
	LeaveRequestDecisionPending  = "Pending"
	LeaveRequestDecisionDenied   = "Denied"
)

var (
	// ErrPaymentNotFound indicates the payment does not exist.
	ErrPaymentNotFound = apperrors.Wrap(apperrors.ErrNotFound, "payment not found")

	// ErrPubEFTNotFound indicates the PUB EFT account does not exist.
	ErrPubEFTNotFound = apperrors.Wrap(apperrors.ErrNotFound, "pub eft not found")

	// ErrInvalidPubIndividualID indicates text that is not an E or P individual id.
	ErrInvalidPubIndividualID = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid pub individual id")
)

// Employee is the claimant.
type Employee struct {
	ID                   uuid.UUID
	FineosCustomerNumber string
	FirstName            string
	LastName             string
	CreatedAt            time.Time
}

// Claim is one leave claim of an employee.
type Claim struct {
	ID                     uuid.UUID
	EmployeeID             uuid.UUID
	FineosAbsenceID        string
	AbsencePeriodStartDate *time.Time
	AbsencePeriodEndDate   *time.Time
	LeaveRequestDecision   string
	CreatedAt              time.Time
}

// AbsenceDays returns the inclusive number of days of the absence period, zero when
// either date is missing.
func (c *Claim) AbsenceDays() int {
	if c.AbsencePeriodStartDate == nil || c.AbsencePeriodEndDate == nil {
		return 0
	}
	return DaysBetween(*c.AbsencePeriodStartDate, *c.AbsencePeriodEndDate) + 1
}

// Payment is one benefit payment extracted from the case system. FineosPeiCValue and
// FineosPeiIValue are opaque correlation keys.
type Payment struct {
	ID              uuid.UUID
	PubIndividualID int64
	ClaimID         *uuid.UUID
	EmployeeID      *uuid.UUID
	PubEFTID        *uuid.UUID
	FineosPeiCValue string
	FineosPeiIValue string
	PeriodStartDate *time.Time
	PeriodEndDate   *time.Time
	Amount          decimal.Decimal
	CreatedAt       time.Time
}

// Overlaps reports whether the pay periods of p and other share at least one day.
func (p *Payment) Overlaps(other *Payment) bool {
	if p.PeriodStartDate == nil || p.PeriodEndDate == nil ||
		other.PeriodStartDate == nil || other.PeriodEndDate == nil {
		return false
	}
	return !dateOf(*other.PeriodStartDate).After(dateOf(*p.PeriodEndDate)) &&
		!dateOf(*other.PeriodEndDate).Before(dateOf(*p.PeriodStartDate))
}

// PubEFT is a bank account prenoted with PUB.
type PubEFT struct {
	ID              uuid.UUID
	PubIndividualID int64
	RoutingNbr      string
	AccountNbr      string
	BankAccountType string
	CreatedAt       time.Time
}

// DaysBetween returns the number of calendar days from a to b, comparing dates only.
func DaysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}

// dateOf truncates t to its calendar date in UTC. DATE columns carry no zone.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
