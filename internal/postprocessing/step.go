package postprocessing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	"github.com/allisson/paidleave/internal/step"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// StepName identifies the post-processing step.
const StepName = "post-processing"

const (
	// CounterProcessed counts the payments the step ran the processors over.
	CounterProcessed = "payment_post_processing_count"

	// CounterStagedForSampling counts payments no processor rejected, handed on to
	// audit report sampling.
	CounterStagedForSampling = "payment_staged_for_audit_sampling_count"
)

// stagedOutcomeMessage is the outcome of the handoff to audit report sampling.
const stagedOutcomeMessage = "Staged for audit report sampling"

// Step applies the processors to every payment in PaymentAwaitingPostProcessing. A
// payment no processor transitions is moved to PaymentStagedForAuditReportSampling in
// the same transaction as its audit details, so a rerun never selects it again.
type Step struct {
	stateLogs  stateUseCase.StateLogUseCase
	payments   paymentUseCase.PaymentUseCase
	audits     auditUseCase.AuditReportUseCase
	writebacks writebackUseCase.WritebackUseCase
	processors []Processor
}

// NewStep creates a post-processing step running processors in the given order.
func NewStep(
	stateLogs stateUseCase.StateLogUseCase,
	payments paymentUseCase.PaymentUseCase,
	audits auditUseCase.AuditReportUseCase,
	writebacks writebackUseCase.WritebackUseCase,
	processors []Processor,
) *Step {
	return &Step{
		stateLogs:  stateLogs,
		payments:   payments,
		audits:     audits,
		writebacks: writebacks,
		processors: processors,
	}
}

// Name returns StepName.
func (s *Step) Name() string { return StepName }

// RunStep selects the working set from the latest pointers and processes each payment.
// Any error aborts the step and rolls back every payment.
func (s *Step) RunStep(ctx context.Context, sc *step.Context) error {
	entries, err := s.stateLogs.ListCurrentEntries(
		ctx,
		stateDomain.FlowDelegatedPayment,
		stateDomain.PaymentAwaitingPostProcessing,
	)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		sc.Logger.Info("no payments awaiting post-processing")
		return nil
	}

	containers, err := s.payments.BuildContainers(ctx, entries)
	if err != nil {
		return err
	}

	for _, container := range containers {
		if err := s.process(ctx, sc, container); err != nil {
			return err
		}
		sc.Metrics.Increment(CounterProcessed)
	}

	return nil
}

func (s *Step) process(ctx context.Context, sc *step.Context, container *paymentDomain.Container) error {
	payment := container.Payment()
	logger := sc.Logger.With(slog.String("payment_id", payment.ID.String()))

	var merged Result
	var decidedBy string
	for _, processor := range s.processors {
		result, err := processor.Process(ctx, container)
		if err != nil {
			return err
		}
		merged.AuditEntries = append(merged.AuditEntries, result.AuditEntries...)
		merged.Counters = append(merged.Counters, result.Counters...)

		if result.Transition == nil {
			continue
		}
		if merged.Transition != nil {
			logger.Info("transition dropped, payment already decided",
				slog.String("processor", processor.Name()),
				slog.String("decided_by", decidedBy),
				slog.Int("end_state", int(result.Transition.EndState)),
			)
			continue
		}
		merged.Transition = result.Transition
		decidedBy = processor.Name()
	}

	if _, err := s.audits.Stage(ctx, payment.ID, merged.AuditEntries, sc.BatchRunID()); err != nil {
		return err
	}

	if merged.Transition == nil {
		if err := s.stageForSampling(ctx, sc, payment.ID, merged.AuditEntries); err != nil {
			return err
		}
		merged.Counters = append(merged.Counters, CounterStagedForSampling)
	}

	if t := merged.Transition; t != nil {
		_, err := s.stateLogs.RecordTransition(
			ctx,
			stateDomain.PaymentRef(payment.ID),
			stateDomain.FlowDelegatedPayment,
			t.EndState,
			t.Outcome,
			sc.BatchRunID(),
		)
		if err != nil {
			return err
		}
		if t.WritebackStatus != "" {
			if _, err := s.writebacks.Stage(ctx, payment.ID, t.WritebackStatus, sc.BatchRunID()); err != nil {
				return err
			}
		}
		logger.Info("payment transitioned",
			slog.String("processor", decidedBy),
			slog.Int("end_state", int(t.EndState)),
		)
	}

	for _, counter := range merged.Counters {
		sc.Metrics.Increment(counter)
	}

	return nil
}

func (s *Step) stageForSampling(
	ctx context.Context,
	sc *step.Context,
	paymentID uuid.UUID,
	entries []auditDomain.Entry,
) error {
	reasons := make([]string, 0, len(entries))
	for _, entry := range entries {
		reasons = append(reasons, string(entry.ReasonCode))
	}

	_, err := s.stateLogs.RecordTransition(
		ctx,
		stateDomain.PaymentRef(paymentID),
		stateDomain.FlowDelegatedPayment,
		stateDomain.PaymentStagedForAuditReportSampling,
		stateDomain.Outcome(stagedOutcomeMessage, map[string]any{"audit_reasons": reasons}),
		sc.BatchRunID(),
	)
	return err
}
