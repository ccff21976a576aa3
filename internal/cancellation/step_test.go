package cancellation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	databaseMocks "github.com/allisson/paidleave/internal/database/mocks"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	"github.com/allisson/paidleave/internal/step"
	"github.com/allisson/paidleave/internal/testutil"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

type fixture struct {
	txManager  *databaseMocks.NopTxManager
	logger     *slog.Logger
	stateRepo  *testutil.MemoryStateLogRepository
	auditRepo  *testutil.MemoryAuditReportRepository
	writebacks *testutil.MemoryWritebackRepository
	stateLogs  stateUseCase.StateLogUseCase
	payments   paymentUseCase.PaymentUseCase
	step       *Step
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		txManager:  &databaseMocks.NopTxManager{},
		logger:     slog.New(slog.DiscardHandler),
		stateRepo:  testutil.NewMemoryStateLogRepository(),
		auditRepo:  testutil.NewMemoryAuditReportRepository(),
		writebacks: testutil.NewMemoryWritebackRepository(),
	}
	store := testutil.NewMemoryPaymentStore()
	f.stateLogs = stateUseCase.NewStateLogUseCase(f.txManager, f.stateRepo, f.logger)
	f.payments = paymentUseCase.NewPaymentUseCase(
		f.txManager,
		store.Employees(),
		store.Claims(),
		store.PubEFTs(),
		store.Payments(),
		f.stateLogs,
		f.logger,
	)
	audits := auditUseCase.NewAuditReportUseCase(f.txManager, f.auditRepo, nil, f.logger)
	writebacks := writebackUseCase.NewWritebackUseCase(
		writebackUseCase.Config{BatchSize: 100},
		f.txManager,
		f.writebacks,
		f.stateLogs,
		f.logger,
	)
	f.step = NewStep(f.stateLogs, f.payments, audits, writebacks)
	return f
}

func (f *fixture) newContext() *step.Context {
	run := &batchrunDomain.BatchRun{ID: uuid.Must(uuid.NewV7()), RunType: StepName}
	return step.NewContext(run, f.logger, f.txManager)
}

func (f *fixture) seedClaim(t *testing.T) *paymentDomain.Claim {
	t.Helper()
	ctx := context.Background()
	employee, err := f.payments.ReceiveEmployee(ctx, paymentUseCase.ReceiveEmployeeInput{
		FineosCustomerNumber: "5678",
		FirstName:            "Sam",
		LastName:             "Lee",
	})
	require.NoError(t, err)

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	claim, err := f.payments.ReceiveClaim(ctx, paymentUseCase.ReceiveClaimInput{
		EmployeeID:             employee.ID,
		FineosAbsenceID:        "NTN-200-ABS-01",
		AbsencePeriodStartDate: &start,
		LeaveRequestDecision:   paymentDomain.LeaveRequestDecisionApproved,
	}, nil)
	require.NoError(t, err)
	return claim
}

// seedPayment stores a payment of claim and walks it through path.
func (f *fixture) seedPayment(
	t *testing.T,
	claim *paymentDomain.Claim,
	path ...stateDomain.StateID,
) *paymentDomain.Payment {
	t.Helper()
	ctx := context.Background()
	payment, err := f.payments.Receive(ctx, paymentUseCase.ReceivePaymentInput{
		ClaimID:         &claim.ID,
		EmployeeID:      &claim.EmployeeID,
		FineosPeiCValue: "7326",
		FineosPeiIValue: uuid.NewString(),
		Amount:          decimal.RequireFromString("250"),
	}, nil)
	require.NoError(t, err)

	for _, next := range path {
		_, err := f.stateLogs.RecordTransition(
			ctx,
			stateDomain.PaymentRef(payment.ID),
			stateDomain.FlowDelegatedPayment,
			next,
			stateDomain.Outcome("seeded", nil),
			nil,
		)
		require.NoError(t, err)
	}
	return payment
}

func (f *fixture) currentState(t *testing.T, paymentID uuid.UUID) stateDomain.StateID {
	t.Helper()
	state, err := f.stateLogs.GetCurrentState(
		context.Background(),
		stateDomain.PaymentRef(paymentID),
		stateDomain.FlowDelegatedPayment,
	)
	require.NoError(t, err)
	require.NotNil(t, state)
	return state.ID
}

var (
	toAddressValidation = []stateDomain.StateID{stateDomain.PaymentAwaitingAddressValidation}
	toPostProcessing    = []stateDomain.StateID{
		stateDomain.PaymentAwaitingAddressValidation,
		stateDomain.PaymentAwaitingPostProcessing,
	}
	toCancellationPending = []stateDomain.StateID{
		stateDomain.PaymentAwaitingAddressValidation,
		stateDomain.PaymentAwaitingPostProcessing,
		stateDomain.PaymentStagedForAuditReportSampling,
		stateDomain.PaymentAuditReportSent,
		stateDomain.PaymentCancellationPending,
	}
)

func TestStep_RunStep(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_FanOut", func(t *testing.T) {
		f := newFixture(t)
		claim := f.seedClaim(t)
		trigger := f.seedPayment(t, claim, toCancellationPending...)
		siblingA := f.seedPayment(t, claim, toAddressValidation...)
		siblingB := f.seedPayment(t, claim, toAddressValidation...)
		sc := f.newContext()

		require.NoError(t, f.step.RunStep(ctx, sc))

		assert.Equal(t, stateDomain.PaymentAddToErrorReport, f.currentState(t, trigger.ID))
		assert.Equal(t, stateDomain.PaymentAddressValidationError, f.currentState(t, siblingA.ID))
		assert.Equal(t, stateDomain.PaymentAddressValidationError, f.currentState(t, siblingB.ID))

		for _, id := range []uuid.UUID{trigger.ID, siblingA.ID, siblingB.ID} {
			history := f.stateRepo.History(stateDomain.PaymentRef(id), stateDomain.FlowDelegatedPayment)
			last := history[len(history)-1]
			assert.Equal(t, OutcomeMessage, last.Outcome["message"])
			assert.Equal(t, sc.BatchRunID(), last.BatchRunID)
		}

		assert.Empty(t, f.auditRepo.ByPayment(siblingA.ID))
		assert.Empty(t, f.auditRepo.ByPayment(siblingB.ID))
		triggerAudits := f.auditRepo.ByPayment(trigger.ID)
		require.Len(t, triggerAudits, 1)
		assert.Equal(t, auditDomain.ReasonPaymentCancelled, triggerAudits[0].ReasonCode)

		require.Len(t, f.writebacks.ByPayment(trigger.ID), 1)
		assert.Equal(t, writebackDomain.TransactionStatusPaymentCancelled,
			f.writebacks.ByPayment(trigger.ID)[0].TransactionStatus)
		require.Len(t, f.writebacks.ByPayment(siblingA.ID), 1)
		assert.Equal(t, writebackDomain.TransactionStatusRelatedPaymentCancelled,
			f.writebacks.ByPayment(siblingA.ID)[0].TransactionStatus)

		assert.Equal(t, int64(1), sc.Metrics.Get(CounterPaymentCancelled))
		assert.Equal(t, int64(2), sc.Metrics.Get(CounterSiblingPaymentCancelled))
	})

	t.Run("Success_SiblingStateMapping", func(t *testing.T) {
		f := newFixture(t)
		claim := f.seedClaim(t)
		f.seedPayment(t, claim, toCancellationPending...)
		early := f.seedPayment(t, claim, toPostProcessing...)
		sent := f.seedPayment(t, claim,
			stateDomain.PaymentAwaitingAddressValidation,
			stateDomain.PaymentAwaitingPostProcessing,
			stateDomain.PaymentAddToPUBTransactionEFT,
		)
		otherClaim := f.seedClaim(t)
		unrelated := f.seedPayment(t, otherClaim, toAddressValidation...)
		sc := f.newContext()

		require.NoError(t, f.step.RunStep(ctx, sc))

		assert.Equal(t, stateDomain.PaymentCascadedError, f.currentState(t, early.ID))
		assert.Equal(t, stateDomain.PaymentAddToPUBTransactionEFT, f.currentState(t, sent.ID))
		assert.Equal(t, stateDomain.PaymentAwaitingAddressValidation, f.currentState(t, unrelated.ID))
		assert.Empty(t, f.writebacks.ByPayment(sent.ID))
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterSiblingPaymentCancelled))
	})

	t.Run("Success_TwoTriggersSameClaim", func(t *testing.T) {
		f := newFixture(t)
		claim := f.seedClaim(t)
		first := f.seedPayment(t, claim, toCancellationPending...)
		second := f.seedPayment(t, claim, toCancellationPending...)
		sibling := f.seedPayment(t, claim, toAddressValidation...)
		sc := f.newContext()

		require.NoError(t, f.step.RunStep(ctx, sc))

		assert.Equal(t, stateDomain.PaymentAddToErrorReport, f.currentState(t, first.ID))
		assert.Equal(t, stateDomain.PaymentAddToErrorReport, f.currentState(t, second.ID))
		assert.Len(t, f.stateRepo.History(stateDomain.PaymentRef(sibling.ID), stateDomain.FlowDelegatedPayment), 3)
		assert.Equal(t, int64(2), sc.Metrics.Get(CounterPaymentCancelled))
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterSiblingPaymentCancelled))
	})

	t.Run("Success_IdempotentRerun", func(t *testing.T) {
		f := newFixture(t)
		claim := f.seedClaim(t)
		f.seedPayment(t, claim, toCancellationPending...)
		f.seedPayment(t, claim, toAddressValidation...)

		require.NoError(t, f.step.RunStep(ctx, f.newContext()))
		entries := f.stateRepo.EntryCount()

		second := f.newContext()
		require.NoError(t, f.step.RunStep(ctx, second))

		assert.Equal(t, entries, f.stateRepo.EntryCount())
		assert.Zero(t, second.Metrics.Get(CounterPaymentCancelled))
		assert.Zero(t, second.Metrics.Get(CounterSiblingPaymentCancelled))
	})
}
