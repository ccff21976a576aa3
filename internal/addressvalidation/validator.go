// Package addressvalidation moves received payments into the pipeline: each payment is
// queued for validation of its payee record, then either released to post-processing
// or added to the payment error report.
package addressvalidation

import (
	"context"
	"strings"

	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
)

// Problems reported by RequiredFieldsValidator.
const (
	ProblemMissingEmployee    = "missing_employee"
	ProblemMissingPayeeName   = "missing_payee_name"
	ProblemMissingCustomerNbr = "missing_customer_number"
	ProblemMissingClaim       = "missing_claim"
	ProblemMissingPayPeriod   = "missing_pay_period"
	ProblemInvertedPayPeriod  = "pay_period_ends_before_start"
	ProblemNonPositiveAmount  = "non_positive_amount"
)

// Verdict is the result of validating one payment. A payment is valid when no problem
// was found.
type Verdict struct {
	Problems []string
}

// Valid reports whether no problem was found.
func (v Verdict) Valid() bool { return len(v.Problems) == 0 }

// Validator checks the payee record of a payment. Implementations may call an external
// address service.
type Validator interface {
	Validate(ctx context.Context, container *paymentDomain.Container) (Verdict, error)
}

// RequiredFieldsValidator rejects payments whose payee record is incomplete. It is the
// default when no address service is configured.
type RequiredFieldsValidator struct{}

// NewRequiredFieldsValidator creates a RequiredFieldsValidator.
func NewRequiredFieldsValidator() *RequiredFieldsValidator {
	return &RequiredFieldsValidator{}
}

// Validate never fails; every missing field is reported as a problem.
func (v *RequiredFieldsValidator) Validate(_ context.Context, c *paymentDomain.Container) (Verdict, error) {
	var problems []string

	if employee := c.Employee(); employee == nil {
		problems = append(problems, ProblemMissingEmployee)
	} else {
		if strings.TrimSpace(employee.FirstName) == "" || strings.TrimSpace(employee.LastName) == "" {
			problems = append(problems, ProblemMissingPayeeName)
		}
		if strings.TrimSpace(employee.FineosCustomerNumber) == "" {
			problems = append(problems, ProblemMissingCustomerNbr)
		}
	}

	if c.Claim() == nil {
		problems = append(problems, ProblemMissingClaim)
	}

	payment := c.Payment()
	switch {
	case payment.PeriodStartDate == nil || payment.PeriodEndDate == nil:
		problems = append(problems, ProblemMissingPayPeriod)
	case payment.PeriodEndDate.Before(*payment.PeriodStartDate):
		problems = append(problems, ProblemInvertedPayPeriod)
	}

	if !payment.Amount.IsPositive() {
		problems = append(problems, ProblemNonPositiveAmount)
	}

	return Verdict{Problems: problems}, nil
}
