package addressvalidation

import (
	"context"
	"log/slog"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	"github.com/allisson/paidleave/internal/step"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// StepName identifies the address validation step.
const StepName = "address-validation"

// Counter names reported by the step.
const (
	CounterQueued  = "payment_queued_for_address_validation_count"
	CounterValid   = "payment_address_valid_count"
	CounterInvalid = "payment_address_validation_error_count"
)

// Outcome messages written by the step.
const (
	OutcomeQueued  = "Awaiting address validation"
	OutcomeValid   = "Address validated"
	OutcomeInvalid = "Address validation error"
)

// Step queues every payment in PaymentReceived for validation and validates every
// payment in PaymentAwaitingAddressValidation. Valid payments move on to
// PaymentAwaitingPostProcessing. Invalid ones end in PaymentAddressValidationError with
// an error report detail and a writeback row written in the same transaction.
type Step struct {
	stateLogs  stateUseCase.StateLogUseCase
	payments   paymentUseCase.PaymentUseCase
	audits     auditUseCase.AuditReportUseCase
	writebacks writebackUseCase.WritebackUseCase
	validator  Validator
}

// NewStep creates an address validation step.
func NewStep(
	stateLogs stateUseCase.StateLogUseCase,
	payments paymentUseCase.PaymentUseCase,
	audits auditUseCase.AuditReportUseCase,
	writebacks writebackUseCase.WritebackUseCase,
	validator Validator,
) *Step {
	return &Step{
		stateLogs:  stateLogs,
		payments:   payments,
		audits:     audits,
		writebacks: writebacks,
		validator:  validator,
	}
}

// Name returns StepName.
func (s *Step) Name() string { return StepName }

// RunStep queues received payments, then validates the queued ones. Both phases select
// from the latest pointers, so a rerun only sees payments that arrived since.
func (s *Step) RunStep(ctx context.Context, sc *step.Context) error {
	if err := s.queueReceived(ctx, sc); err != nil {
		return err
	}

	entries, err := s.stateLogs.ListCurrentEntries(
		ctx,
		stateDomain.FlowDelegatedPayment,
		stateDomain.PaymentAwaitingAddressValidation,
	)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		sc.Logger.Info("no payments awaiting address validation")
		return nil
	}

	containers, err := s.payments.BuildContainers(ctx, entries)
	if err != nil {
		return err
	}

	for _, container := range containers {
		if err := s.validate(ctx, sc, container); err != nil {
			return err
		}
	}

	return nil
}

func (s *Step) queueReceived(ctx context.Context, sc *step.Context) error {
	entries, err := s.stateLogs.ListCurrentEntries(ctx, stateDomain.FlowDelegatedPayment, stateDomain.PaymentReceived)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		_, err := s.stateLogs.RecordTransition(
			ctx,
			entry.Entity,
			stateDomain.FlowDelegatedPayment,
			stateDomain.PaymentAwaitingAddressValidation,
			stateDomain.Outcome(OutcomeQueued, nil),
			sc.BatchRunID(),
		)
		if err != nil {
			return err
		}
		sc.Metrics.Increment(CounterQueued)
	}

	return nil
}

func (s *Step) validate(ctx context.Context, sc *step.Context, container *paymentDomain.Container) error {
	payment := container.Payment()
	ref := stateDomain.PaymentRef(payment.ID)

	verdict, err := s.validator.Validate(ctx, container)
	if err != nil {
		return err
	}

	if verdict.Valid() {
		_, err := s.stateLogs.RecordTransition(
			ctx,
			ref,
			stateDomain.FlowDelegatedPayment,
			stateDomain.PaymentAwaitingPostProcessing,
			stateDomain.Outcome(OutcomeValid, nil),
			sc.BatchRunID(),
		)
		if err != nil {
			return err
		}
		sc.Metrics.Increment(CounterValid)
		return nil
	}

	details := map[string]any{"problems": verdict.Problems}
	entry := auditDomain.NewEntry(auditDomain.ReasonAddressValidationError, details)
	if _, err := s.audits.Stage(ctx, payment.ID, []auditDomain.Entry{entry}, sc.BatchRunID()); err != nil {
		return err
	}

	_, err = s.stateLogs.RecordTransition(
		ctx,
		ref,
		stateDomain.FlowDelegatedPayment,
		stateDomain.PaymentAddressValidationError,
		stateDomain.Outcome(OutcomeInvalid, details),
		sc.BatchRunID(),
	)
	if err != nil {
		return err
	}

	_, err = s.writebacks.Stage(
		ctx,
		payment.ID,
		writebackDomain.TransactionStatusAddressValidationError,
		sc.BatchRunID(),
	)
	if err != nil {
		return err
	}

	sc.Logger.Info("payment failed address validation",
		slog.String("payment_id", payment.ID.String()),
		slog.Any("problems", verdict.Problems),
	)
	sc.Metrics.Increment(CounterInvalid)
	return nil
}
