package postprocessing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// Counter names reported by the processors.
const (
	CounterLeavePlanInReview        = "payment_leave_plan_in_review_count"
	CounterInWaitingWeek            = "payment_in_waiting_week_count"
	CounterNotInWaitingWeek         = "payment_not_in_waiting_week_count"
	CounterWaitingWeekNotComputed   = "payment_waiting_week_not_computed_count"
	CounterMaxWeeklyBenefitAccepted = "payment_max_weekly_benefit_accepted_count"
	CounterMaxWeeklyBenefitExceeded = "payment_max_weekly_benefit_exceeded_count"
	CounterLeaveDurationAccepted    = "payment_leave_duration_accepted_count"
	CounterLeaveDurationExceeded    = "payment_leave_duration_exceeded_count"
	CounterLeaveDurationNotComputed = "payment_leave_duration_not_computed_count"
)

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

// InReviewProcessor annotates payments whose leave plan is still in review. It never
// moves the payment.
type InReviewProcessor struct{}

// NewInReviewProcessor creates an InReviewProcessor.
func NewInReviewProcessor() *InReviewProcessor {
	return &InReviewProcessor{}
}

// Name returns the processor name.
func (p *InReviewProcessor) Name() string { return "in_review" }

// Process stages leave_plan_in_review when the claim decision is In Review.
func (p *InReviewProcessor) Process(_ context.Context, c *paymentDomain.Container) (Result, error) {
	claim := c.Claim()
	if claim == nil || claim.LeaveRequestDecision != paymentDomain.LeaveRequestDecisionInReview {
		return Result{}, nil
	}
	return Result{
		AuditEntries: []auditDomain.Entry{
			auditDomain.NewEntry(auditDomain.ReasonLeavePlanInReview, map[string]any{
				"leave_request_decision": claim.LeaveRequestDecision,
			}),
		},
		Counters: []string{CounterLeavePlanInReview},
	}, nil
}

// WaitingWeekProcessor annotates payments whose period starts inside the claim's
// unpaid waiting week.
type WaitingWeekProcessor struct {
	offsetDays int
}

// NewWaitingWeekProcessor creates a WaitingWeekProcessor.
func NewWaitingWeekProcessor(offsetDays int) *WaitingWeekProcessor {
	return &WaitingWeekProcessor{offsetDays: offsetDays}
}

// Name returns the processor name.
func (p *WaitingWeekProcessor) Name() string { return "waiting_week" }

// Process classifies the payment and stages in_waiting_week with both dates.
func (p *WaitingWeekProcessor) Process(_ context.Context, c *paymentDomain.Container) (Result, error) {
	var absenceStart *time.Time
	if claim := c.Claim(); claim != nil {
		absenceStart = claim.AbsencePeriodStartDate
	}
	periodStart := c.Payment().PeriodStartDate

	status := paymentDomain.ClassifyWaitingWeek(periodStart, absenceStart, p.offsetDays)
	switch status {
	case paymentDomain.WaitingWeekIn:
		return Result{
			AuditEntries: []auditDomain.Entry{
				auditDomain.NewEntry(auditDomain.ReasonInWaitingWeek, map[string]any{
					"payment_period_start_date": formatDate(periodStart),
					"absence_period_start_date": formatDate(absenceStart),
					"waiting_week_status":       string(status),
				}),
			},
			Counters: []string{CounterInWaitingWeek},
		}, nil
	case paymentDomain.WaitingWeekNotIn:
		return Result{Counters: []string{CounterNotInWaitingWeek}}, nil
	default:
		return Result{Counters: []string{CounterWaitingWeekNotComputed}}, nil
	}
}

// MaxWeeklyBenefitProcessor rejects payments that, together with the employee's other
// active payments covering an overlapping period, exceed the weekly benefit maximum.
type MaxWeeklyBenefitProcessor struct {
	maximum decimal.Decimal
}

// NewMaxWeeklyBenefitProcessor creates a MaxWeeklyBenefitProcessor.
func NewMaxWeeklyBenefitProcessor(maximum decimal.Decimal) *MaxWeeklyBenefitProcessor {
	return &MaxWeeklyBenefitProcessor{maximum: maximum}
}

// Name returns the processor name.
func (p *MaxWeeklyBenefitProcessor) Name() string { return "max_weekly_benefit" }

// Process compares the overlapping total with the maximum.
func (p *MaxWeeklyBenefitProcessor) Process(_ context.Context, c *paymentDomain.Container) (Result, error) {
	total := c.OverlappingTotal()
	if !total.GreaterThan(p.maximum) {
		return Result{Counters: []string{CounterMaxWeeklyBenefitAccepted}}, nil
	}

	overlapping := c.ActiveOverlappingPayments()
	overlappingIDs := make([]string, len(overlapping))
	for i, payment := range overlapping {
		overlappingIDs[i] = payment.ID.String()
	}
	details := map[string]any{
		"payment_amount":          c.Payment().Amount.StringFixed(2),
		"overlapping_total":       total.StringFixed(2),
		"maximum_weekly_benefit":  p.maximum.StringFixed(2),
		"overlapping_payment_ids": overlappingIDs,
	}

	return Result{
		AuditEntries: []auditDomain.Entry{
			auditDomain.NewEntry(auditDomain.ReasonMaxWeeklyBenefitsExceeded, details),
		},
		Transition: &Transition{
			EndState:        stateDomain.PaymentAddToErrorReport,
			Outcome:         stateDomain.Outcome("Maximum weekly benefit amount exceeded", details),
			WritebackStatus: writebackDomain.TransactionStatusMaxWeeklyBenefitsExceeded,
		},
		Counters: []string{CounterMaxWeeklyBenefitExceeded},
	}, nil
}

// LeaveDurationProcessor rejects payments of employees whose absence days in the
// benefit year ending with the claim exceed the maximum.
type LeaveDurationProcessor struct {
	maxDays int
	weeks   int
}

// NewLeaveDurationProcessor creates a LeaveDurationProcessor.
func NewLeaveDurationProcessor(maxDays, benefitYearWeeks int) *LeaveDurationProcessor {
	return &LeaveDurationProcessor{maxDays: maxDays, weeks: benefitYearWeeks}
}

// Name returns the processor name.
func (p *LeaveDurationProcessor) Name() string { return "leave_duration" }

// Process anchors the benefit year on the claim's absence end date, or its start when
// the end is open.
func (p *LeaveDurationProcessor) Process(_ context.Context, c *paymentDomain.Container) (Result, error) {
	claim := c.Claim()
	if claim == nil {
		return Result{Counters: []string{CounterLeaveDurationNotComputed}}, nil
	}
	anchor := claim.AbsencePeriodEndDate
	if anchor == nil {
		anchor = claim.AbsencePeriodStartDate
	}
	if anchor == nil {
		return Result{Counters: []string{CounterLeaveDurationNotComputed}}, nil
	}

	days := paymentDomain.LeaveDaysInBenefitYear(c.EmployeeClaims(), *anchor, p.weeks)
	if days <= p.maxDays {
		return Result{Counters: []string{CounterLeaveDurationAccepted}}, nil
	}

	details := map[string]any{
		"leave_days_in_benefit_year": days,
		"maximum_leave_days":         p.maxDays,
		"benefit_year_end_date":      formatDate(anchor),
	}

	return Result{
		AuditEntries: []auditDomain.Entry{
			auditDomain.NewEntry(auditDomain.ReasonLeaveDurationMaxExceeded, details),
		},
		Transition: &Transition{
			EndState:        stateDomain.PaymentAddToErrorReport,
			Outcome:         stateDomain.Outcome("Maximum leave duration exceeded", details),
			WritebackStatus: writebackDomain.TransactionStatusLeaveDurationMaxExceeded,
		},
		Counters: []string{CounterLeaveDurationExceeded},
	}, nil
}
