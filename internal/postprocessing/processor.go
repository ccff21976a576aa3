// Package postprocessing runs the ordered chain of business-rule processors over every
// payment awaiting post-processing. Processors only return effects; the step applies
// them in the step transaction.
package postprocessing

import (
	"context"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	appValidation "github.com/allisson/paidleave/internal/validation"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// ErrInvalidConfig indicates the processors were configured with missing or invalid values.
var ErrInvalidConfig = apperrors.Wrap(apperrors.ErrInvariantViolation, "invalid post-processing configuration")

// Processor decides what happens to one payment.
type Processor interface {
	Name() string
	Process(ctx context.Context, container *paymentDomain.Container) (Result, error)
}

// Transition requests a move of the payment within the delegated payment flow. When
// WritebackStatus is set a writeback row is staged with it.
type Transition struct {
	EndState        stateDomain.StateID
	Outcome         map[string]any
	WritebackStatus writebackDomain.TransactionStatus
}

// Result holds the effects of one processor on one payment.
type Result struct {
	AuditEntries []auditDomain.Entry
	Transition   *Transition
	Counters     []string
}

// Config holds the thresholds of the default processors.
type Config struct {
	WaitingWeekOffsetDays  int
	MaxWeeklyBenefitAmount decimal.Decimal
	MaxLeaveDurationDays   int
	BenefitYearWeeks       int
}

// Validate checks that every threshold is usable.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.WaitingWeekOffsetDays, validation.Min(0)),
		validation.Field(&c.MaxWeeklyBenefitAmount, appValidation.PositiveDecimal),
		validation.Field(&c.MaxLeaveDurationDays, validation.Required, validation.Min(1)),
		validation.Field(&c.BenefitYearWeeks, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return apperrors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// NewDefaultProcessors returns the processors in the order they run: in-review,
// waiting week, max weekly benefit and leave duration.
func NewDefaultProcessors(cfg Config) ([]Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return []Processor{
		NewInReviewProcessor(),
		NewWaitingWeekProcessor(cfg.WaitingWeekOffsetDays),
		NewMaxWeeklyBenefitProcessor(cfg.MaxWeeklyBenefitAmount),
		NewLeaveDurationProcessor(cfg.MaxLeaveDurationDays, cfg.BenefitYearWeeks),
	}, nil
}
