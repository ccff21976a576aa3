package postprocessing

import (
	"context"
	"errors"
	"log/slog"
	"testing"

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
	audits     auditUseCase.AuditReportUseCase
	writeback  writebackUseCase.WritebackUseCase
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
	f.audits = auditUseCase.NewAuditReportUseCase(f.txManager, f.auditRepo, nil, f.logger)
	f.writeback = writebackUseCase.NewWritebackUseCase(
		writebackUseCase.Config{BatchSize: 100},
		f.txManager,
		f.writebacks,
		f.stateLogs,
		f.logger,
	)
	return f
}

func (f *fixture) newStep(processors ...Processor) *Step {
	return NewStep(f.stateLogs, f.payments, f.audits, f.writeback, processors)
}

func (f *fixture) newContext() *step.Context {
	run := &batchrunDomain.BatchRun{ID: uuid.Must(uuid.NewV7()), RunType: StepName}
	return step.NewContext(run, f.logger, f.txManager)
}

// seedPayment stores an employee, a claim and a payment and moves the payment to
// stateID through the early states.
func (f *fixture) seedPayment(
	t *testing.T,
	decision string,
	amount string,
	stateID stateDomain.StateID,
) *paymentDomain.Payment {
	t.Helper()
	ctx := context.Background()

	employee, err := f.payments.ReceiveEmployee(ctx, paymentUseCase.ReceiveEmployeeInput{
		FineosCustomerNumber: "1234",
		FirstName:            "Jordan",
		LastName:             "Doe",
	})
	require.NoError(t, err)

	claim, err := f.payments.ReceiveClaim(ctx, paymentUseCase.ReceiveClaimInput{
		EmployeeID:             employee.ID,
		FineosAbsenceID:        "NTN-100-ABS-01",
		AbsencePeriodStartDate: date(2024, 3, 4),
		AbsencePeriodEndDate:   date(2024, 3, 31),
		LeaveRequestDecision:   decision,
	}, nil)
	require.NoError(t, err)

	return f.seedClaimPayment(t, claim, amount, stateID)
}

func (f *fixture) seedClaimPayment(
	t *testing.T,
	claim *paymentDomain.Claim,
	amount string,
	stateID stateDomain.StateID,
) *paymentDomain.Payment {
	t.Helper()
	ctx := context.Background()

	payment, err := f.payments.Receive(ctx, paymentUseCase.ReceivePaymentInput{
		ClaimID:         &claim.ID,
		EmployeeID:      &claim.EmployeeID,
		FineosPeiCValue: "7326",
		FineosPeiIValue: uuid.NewString(),
		PeriodStartDate: date(2024, 3, 11),
		PeriodEndDate:   date(2024, 3, 17),
		Amount:          decimal.RequireFromString(amount),
	}, nil)
	require.NoError(t, err)

	path := []stateDomain.StateID{stateDomain.PaymentAwaitingAddressValidation}
	if stateID != stateDomain.PaymentAwaitingAddressValidation {
		path = append(path, stateID)
	}
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

type failingProcessor struct{ err error }

func (p failingProcessor) Name() string { return "failing" }

func (p failingProcessor) Process(context.Context, *paymentDomain.Container) (Result, error) {
	return Result{}, p.err
}

type fixedProcessor struct {
	name   string
	result Result
}

func (p fixedProcessor) Name() string { return p.name }

func (p fixedProcessor) Process(context.Context, *paymentDomain.Container) (Result, error) {
	return p.result, nil
}

func TestStep_RunStep(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_InReviewRoundTrip", func(t *testing.T) {
		f := newFixture(t)
		payment := f.seedPayment(t, paymentDomain.LeaveRequestDecisionInReview, "500", stateDomain.PaymentAwaitingPostProcessing)
		entriesBefore := f.stateRepo.EntryCount()
		sc := f.newContext()

		err := f.newStep(NewInReviewProcessor()).RunStep(ctx, sc)

		require.NoError(t, err)
		details := f.auditRepo.ByPayment(payment.ID)
		require.Len(t, details, 1)
		assert.Equal(t, auditDomain.ReasonLeavePlanInReview, details[0].ReasonCode)
		assert.Equal(t, "Leave plan still in review", details[0].Message["message"])
		assert.Equal(t, sc.BatchRunID(), details[0].BatchRunID)
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterLeavePlanInReview))
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterProcessed))

		// No processor decided the payment, so it is handed on unchanged.
		assert.Equal(t, entriesBefore+1, f.stateRepo.EntryCount())
		assert.Equal(t, stateDomain.PaymentStagedForAuditReportSampling, f.currentState(t, payment.ID))
		history := f.stateRepo.History(stateDomain.PaymentRef(payment.ID), stateDomain.FlowDelegatedPayment)
		last := history[len(history)-1]
		require.NotNil(t, last.StartStateID)
		assert.Equal(t, stateDomain.PaymentAwaitingPostProcessing, *last.StartStateID)
		assert.Equal(t, "Staged for audit report sampling", last.Outcome["message"])
		assert.Equal(t, sc.BatchRunID(), last.BatchRunID)
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterStagedForSampling))
		assert.Empty(t, f.writebacks.ByPayment(payment.ID))
	})

	t.Run("Success_MaxWeeklyBenefitExceeded", func(t *testing.T) {
		f := newFixture(t)
		payment := f.seedPayment(t, paymentDomain.LeaveRequestDecisionApproved, "1500", stateDomain.PaymentAwaitingPostProcessing)
		sc := f.newContext()

		processors, err := NewDefaultProcessors(Config{
			MaxWeeklyBenefitAmount: decimal.RequireFromString("1129.82"),
			MaxLeaveDurationDays:   182,
			BenefitYearWeeks:       52,
		})
		require.NoError(t, err)

		require.NoError(t, f.newStep(processors...).RunStep(ctx, sc))

		assert.Equal(t, stateDomain.PaymentAddToErrorReport, f.currentState(t, payment.ID))
		history := f.stateRepo.History(stateDomain.PaymentRef(payment.ID), stateDomain.FlowDelegatedPayment)
		last := history[len(history)-1]
		assert.Equal(t, sc.BatchRunID(), last.BatchRunID)
		assert.Equal(t, "Maximum weekly benefit amount exceeded", last.Outcome["message"])

		details := f.auditRepo.ByPayment(payment.ID)
		require.Len(t, details, 1)
		assert.Equal(t, auditDomain.ReasonMaxWeeklyBenefitsExceeded, details[0].ReasonCode)

		rows := f.writebacks.ByPayment(payment.ID)
		require.Len(t, rows, 1)
		assert.Equal(t, writebackDomain.TransactionStatusMaxWeeklyBenefitsExceeded, rows[0].TransactionStatus)
		writebackState, err := f.stateLogs.GetCurrentState(ctx, stateDomain.PaymentRef(payment.ID), stateDomain.FlowCaseWriteback)
		require.NoError(t, err)
		assert.Equal(t, stateDomain.WritebackAdded, writebackState.ID)

		assert.Equal(t, int64(1), sc.Metrics.Get(CounterMaxWeeklyBenefitExceeded))
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterNotInWaitingWeek))
		assert.Equal(t, int64(1), sc.Metrics.Get(CounterLeaveDurationAccepted))
	})

	t.Run("Success_FirstTransitionWins", func(t *testing.T) {
		f := newFixture(t)
		payment := f.seedPayment(t, paymentDomain.LeaveRequestDecisionApproved, "100", stateDomain.PaymentAwaitingPostProcessing)
		sc := f.newContext()

		first := fixedProcessor{name: "first", result: Result{
			Transition: &Transition{
				EndState:        stateDomain.PaymentAddToErrorReport,
				Outcome:         stateDomain.Outcome("first", nil),
				WritebackStatus: writebackDomain.TransactionStatusLeaveDurationMaxExceeded,
			},
			AuditEntries: []auditDomain.Entry{auditDomain.NewEntry(auditDomain.ReasonLeaveDurationMaxExceeded, nil)},
		}}
		second := fixedProcessor{name: "second", result: Result{
			Transition: &Transition{
				EndState:        stateDomain.PaymentAddToErrorReport,
				Outcome:         stateDomain.Outcome("second", nil),
				WritebackStatus: writebackDomain.TransactionStatusMaxWeeklyBenefitsExceeded,
			},
			AuditEntries: []auditDomain.Entry{auditDomain.NewEntry(auditDomain.ReasonMaxWeeklyBenefitsExceeded, nil)},
		}}

		require.NoError(t, f.newStep(first, second).RunStep(ctx, sc))

		history := f.stateRepo.History(stateDomain.PaymentRef(payment.ID), stateDomain.FlowDelegatedPayment)
		assert.Equal(t, "first", history[len(history)-1].Outcome["message"])
		assert.Len(t, f.auditRepo.ByPayment(payment.ID), 2)
		rows := f.writebacks.ByPayment(payment.ID)
		require.Len(t, rows, 1)
		assert.Equal(t, writebackDomain.TransactionStatusLeaveDurationMaxExceeded, rows[0].TransactionStatus)
	})

	t.Run("Success_IgnoresOtherStates", func(t *testing.T) {
		f := newFixture(t)
		f.seedPayment(t, paymentDomain.LeaveRequestDecisionInReview, "100", stateDomain.PaymentAwaitingAddressValidation)
		sc := f.newContext()

		require.NoError(t, f.newStep(NewInReviewProcessor()).RunStep(ctx, sc))

		assert.Equal(t, 0, f.auditRepo.Count())
		assert.Empty(t, sc.Metrics.Snapshot())
	})

	t.Run("Success_IdempotentRerun", func(t *testing.T) {
		f := newFixture(t)
		rejected := f.seedPayment(t, paymentDomain.LeaveRequestDecisionApproved, "5000", stateDomain.PaymentAwaitingPostProcessing)
		inReview := f.seedPayment(t, paymentDomain.LeaveRequestDecisionInReview, "100", stateDomain.PaymentAwaitingPostProcessing)
		processors, err := NewDefaultProcessors(Config{
			MaxWeeklyBenefitAmount: decimal.RequireFromString("1129.82"),
			MaxLeaveDurationDays:   182,
			BenefitYearWeeks:       52,
		})
		require.NoError(t, err)
		s := f.newStep(processors...)

		first := f.newContext()
		require.NoError(t, s.RunStep(ctx, first))
		assert.Equal(t, int64(2), first.Metrics.Get(CounterProcessed))
		assert.Equal(t, int64(1), first.Metrics.Get(CounterLeavePlanInReview))
		assert.Equal(t, stateDomain.PaymentAddToErrorReport, f.currentState(t, rejected.ID))
		assert.Equal(t, stateDomain.PaymentStagedForAuditReportSampling, f.currentState(t, inReview.ID))
		require.Len(t, f.auditRepo.ByPayment(inReview.ID), 1)
		entries := f.stateRepo.EntryCount()
		audits := f.auditRepo.Count()

		second := f.newContext()
		require.NoError(t, s.RunStep(ctx, second))

		assert.Equal(t, entries, f.stateRepo.EntryCount())
		assert.Equal(t, audits, f.auditRepo.Count())
		assert.Len(t, f.auditRepo.ByPayment(inReview.ID), 1)
		assert.Empty(t, second.Metrics.Snapshot())
	})

	t.Run("Error_ProcessorFails", func(t *testing.T) {
		f := newFixture(t)
		f.seedPayment(t, paymentDomain.LeaveRequestDecisionInReview, "100", stateDomain.PaymentAwaitingPostProcessing)
		processErr := errors.New("boom")

		err := f.newStep(failingProcessor{err: processErr}, NewInReviewProcessor()).RunStep(ctx, f.newContext())

		assert.ErrorIs(t, err, processErr)
		assert.Equal(t, 0, f.auditRepo.Count())
	})
}
