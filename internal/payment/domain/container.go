package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

// errorStates are payment states that take a payment out of the disbursement path.
var errorStates = map[stateDomain.StateID]bool{
	stateDomain.PaymentAddressValidationError: true,
	stateDomain.PaymentAddToErrorReport:       true,
	stateDomain.PaymentErrorReportSent:        true,
	stateDomain.PaymentCascadedError:          true,
}

// IsErrorState reports whether a payment in this state will not be disbursed.
func IsErrorState(id stateDomain.StateID) bool {
	return errorStates[id]
}

// RelatedPayment is another payment of the same employee together with its current
// state in the payment flow. State is nil when the payment has none.
type RelatedPayment struct {
	Payment *Payment
	State   *stateDomain.State
}

// Active reports whether the related payment is still headed for disbursement.
func (r RelatedPayment) Active() bool {
	return r.State != nil && !IsErrorState(r.State.ID)
}

// ContainerParams holds the values a Container is built from.
type ContainerParams struct {
	Payment         *Payment
	Claim           *Claim
	Employee        *Employee
	StateLog        *stateDomain.StateLogEntry
	RelatedPayments []RelatedPayment
	EmployeeClaims  []*Claim
}

// Container is the in-memory aggregate shared by the post-processing chain. It is
// immutable after construction and owned by one post-processing run.
type Container struct {
	payment         *Payment
	claim           *Claim
	employee        *Employee
	stateLog        *stateDomain.StateLogEntry
	relatedPayments []RelatedPayment
	employeeClaims  []*Claim
}

// NewContainer builds a container. The slices are copied.
func NewContainer(params ContainerParams) *Container {
	return &Container{
		payment:         params.Payment,
		claim:           params.Claim,
		employee:        params.Employee,
		stateLog:        params.StateLog,
		relatedPayments: slices.Clone(params.RelatedPayments),
		employeeClaims:  slices.Clone(params.EmployeeClaims),
	}
}

// Payment returns the payment being processed.
func (c *Container) Payment() *Payment { return c.payment }

// Claim returns the payment's claim, nil when the payment has none.
func (c *Container) Claim() *Claim { return c.claim }

// Employee returns the payment's employee, nil when the payment has none.
func (c *Container) Employee() *Employee { return c.employee }

// StateLog returns the latest state log entry that selected the payment.
func (c *Container) StateLog() *stateDomain.StateLogEntry { return c.stateLog }

// PriorState returns the payment's state when the run selected it.
func (c *Container) PriorState() stateDomain.StateID {
	if c.stateLog == nil {
		return 0
	}
	return c.stateLog.EndStateID
}

// RelatedPayments returns the employee's other payments with their current states.
func (c *Container) RelatedPayments() []RelatedPayment { return slices.Clone(c.relatedPayments) }

// EmployeeClaims returns every claim of the employee, including the payment's own.
func (c *Container) EmployeeClaims() []*Claim { return slices.Clone(c.employeeClaims) }

// ActiveOverlappingPayments returns related payments still headed for disbursement whose
// pay period overlaps the payment's.
func (c *Container) ActiveOverlappingPayments() []*Payment {
	var result []*Payment
	for _, related := range c.relatedPayments {
		if related.Payment.ID == c.payment.ID || !related.Active() {
			continue
		}
		if c.payment.Overlaps(related.Payment) {
			result = append(result, related.Payment)
		}
	}
	return result
}

// OverlappingTotal sums the payment and its active overlapping payments.
func (c *Container) OverlappingTotal() decimal.Decimal {
	total := c.payment.Amount
	for _, p := range c.ActiveOverlappingPayments() {
		total = total.Add(p.Amount)
	}
	return total
}

// LeaveDaysInBenefitYear sums the absence days of claims inside the benefit year of
// the given length ending on anchor (inclusive).
func LeaveDaysInBenefitYear(claims []*Claim, anchor time.Time, weeks int) int {
	end := dateOf(anchor)
	start := end.AddDate(0, 0, -weeks*7+1)

	total := 0
	for _, claim := range claims {
		if claim.AbsencePeriodStartDate == nil || claim.AbsencePeriodEndDate == nil {
			continue
		}
		from := dateOf(*claim.AbsencePeriodStartDate)
		to := dateOf(*claim.AbsencePeriodEndDate)
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if to.Before(from) {
			continue
		}
		total += DaysBetween(from, to) + 1
	}
	return total
}
