// Package cancellation fans a cancelled payment out to the sibling payments of the
// same claim that have not progressed past the early states.
package cancellation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	"github.com/allisson/paidleave/internal/step"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// StepName identifies the cancellation step.
const StepName = "payment-cancellation"

const (
	CounterPaymentCancelled        = "payment_cancelled_count"
	CounterSiblingPaymentCancelled = "sibling_payment_cancelled_count"
)

// OutcomeMessage is the outcome written for the cancelled payment and every sibling.
const OutcomeMessage = "Payment cancelled."

// siblingEndStates maps the early states a sibling may sit in to the error-report
// state it is moved to.
var siblingEndStates = map[stateDomain.StateID]stateDomain.StateID{
	stateDomain.PaymentAwaitingAddressValidation: stateDomain.PaymentAddressValidationError,
	stateDomain.PaymentAwaitingPostProcessing:    stateDomain.PaymentCascadedError,
}

// Step cancels every payment in PaymentCancellationPending together with its siblings.
type Step struct {
	stateLogs  stateUseCase.StateLogUseCase
	payments   paymentUseCase.PaymentUseCase
	audits     auditUseCase.AuditReportUseCase
	writebacks writebackUseCase.WritebackUseCase
}

// NewStep creates a cancellation step.
func NewStep(
	stateLogs stateUseCase.StateLogUseCase,
	payments paymentUseCase.PaymentUseCase,
	audits auditUseCase.AuditReportUseCase,
	writebacks writebackUseCase.WritebackUseCase,
) *Step {
	return &Step{
		stateLogs:  stateLogs,
		payments:   payments,
		audits:     audits,
		writebacks: writebacks,
	}
}

// Name returns StepName.
func (s *Step) Name() string { return StepName }

// RunStep reads the triggers and each trigger's siblings from the latest pointers, so a
// sibling moved by an earlier trigger of the same run is not moved twice.
func (s *Step) RunStep(ctx context.Context, sc *step.Context) error {
	triggers, err := s.stateLogs.ListCurrentEntries(
		ctx,
		stateDomain.FlowDelegatedPayment,
		stateDomain.PaymentCancellationPending,
	)
	if err != nil {
		return err
	}
	if len(triggers) == 0 {
		sc.Logger.Info("no payments pending cancellation")
		return nil
	}

	for _, trigger := range triggers {
		if trigger.Entity.Kind != stateDomain.EntityPayment {
			return apperrors.Wrapf(stateDomain.ErrEntityKindNotInFlow, "entry %s", trigger.ID)
		}
		payment, err := s.payments.Get(ctx, trigger.Entity.ID)
		if err != nil {
			return err
		}
		if err := s.cancel(ctx, sc, payment); err != nil {
			return err
		}
	}

	return nil
}

func (s *Step) cancel(ctx context.Context, sc *step.Context, payment *paymentDomain.Payment) error {
	logger := sc.Logger.With(slog.String("payment_id", payment.ID.String()))

	cancelled, err := s.cancelSiblings(ctx, sc, payment)
	if err != nil {
		return err
	}

	details := map[string]any{}
	if len(cancelled) > 0 {
		ids := make([]string, len(cancelled))
		for i, id := range cancelled {
			ids[i] = id.String()
		}
		details["cancelled_sibling_payment_ids"] = ids
	}

	_, err = s.stateLogs.RecordTransition(
		ctx,
		stateDomain.PaymentRef(payment.ID),
		stateDomain.FlowDelegatedPayment,
		stateDomain.PaymentAddToErrorReport,
		stateDomain.Outcome(OutcomeMessage, details),
		sc.BatchRunID(),
	)
	if err != nil {
		return err
	}

	entries := []auditDomain.Entry{auditDomain.NewEntry(auditDomain.ReasonPaymentCancelled, details)}
	if _, err := s.audits.Stage(ctx, payment.ID, entries, sc.BatchRunID()); err != nil {
		return err
	}

	_, err = s.writebacks.Stage(ctx, payment.ID, writebackDomain.TransactionStatusPaymentCancelled, sc.BatchRunID())
	if err != nil {
		return err
	}

	sc.Metrics.Increment(CounterPaymentCancelled)
	logger.Info("payment cancelled", slog.Int("cancelled_siblings", len(cancelled)))

	return nil
}

func (s *Step) cancelSiblings(
	ctx context.Context,
	sc *step.Context,
	payment *paymentDomain.Payment,
) ([]uuid.UUID, error) {
	if payment.ClaimID == nil {
		return nil, nil
	}

	siblings, err := s.payments.ListByClaim(ctx, *payment.ClaimID)
	if err != nil {
		return nil, err
	}

	refs := make([]stateDomain.EntityRef, 0, len(siblings))
	for _, sibling := range siblings {
		if sibling.ID != payment.ID {
			refs = append(refs, stateDomain.PaymentRef(sibling.ID))
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}

	states, err := s.stateLogs.GetCurrentStateMulti(ctx, refs, stateDomain.FlowDelegatedPayment)
	if err != nil {
		return nil, err
	}

	var cancelled []uuid.UUID
	for _, ref := range refs {
		current, ok := states[ref]
		if !ok {
			continue
		}
		endState, ok := siblingEndStates[current.ID]
		if !ok {
			continue
		}

		_, err := s.stateLogs.RecordTransition(
			ctx,
			ref,
			stateDomain.FlowDelegatedPayment,
			endState,
			stateDomain.Outcome(OutcomeMessage, map[string]any{"cancelled_payment_id": payment.ID.String()}),
			sc.BatchRunID(),
		)
		if err != nil {
			return nil, err
		}

		_, err = s.writebacks.Stage(ctx, ref.ID, writebackDomain.TransactionStatusRelatedPaymentCancelled, sc.BatchRunID())
		if err != nil {
			return nil, err
		}

		sc.Metrics.Increment(CounterSiblingPaymentCancelled)
		cancelled = append(cancelled, ref.ID)
	}

	return cancelled, nil
}
