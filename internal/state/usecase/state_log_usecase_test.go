package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	databaseMocks "github.com/allisson/paidleave/internal/database/mocks"
	apperrors "github.com/allisson/paidleave/internal/errors"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	"github.com/allisson/paidleave/internal/testutil"
)

func newTestUseCase(t *testing.T) (*stateLogUseCase, *testutil.MemoryStateLogRepository, *databaseMocks.NopTxManager) {
	t.Helper()
	repo := testutil.NewMemoryStateLogRepository()
	txManager := &databaseMocks.NopTxManager{}
	uc := NewStateLogUseCase(txManager, repo, slog.New(slog.DiscardHandler)).(*stateLogUseCase)

	// Strictly increasing clock so created_at ordering is deterministic.
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	tick := 0
	uc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return uc, repo, txManager
}

func TestStateLogUseCase_RecordTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_FirstTransitionHasNoStartState", func(t *testing.T) {
		uc, repo, txManager := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
		batchRunID := uuid.Must(uuid.NewV7())

		entry, err := uc.RecordTransition(ctx, payment, stateDomain.FlowDelegatedPayment,
			stateDomain.PaymentReceived, stateDomain.Outcome("Payment received", nil), &batchRunID)

		require.NoError(t, err)
		assert.Nil(t, entry.StartStateID)
		assert.Equal(t, stateDomain.PaymentReceived, entry.EndStateID)
		assert.Equal(t, &batchRunID, entry.BatchRunID)
		assert.Equal(t, 1, repo.PointerCount(payment, stateDomain.FlowDelegatedPayment))
		assert.Equal(t, int64(1), txManager.WithTxCalls.Load())
	})

	t.Run("Success_StartStateIsPreviousEndState", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
		flow := stateDomain.FlowDelegatedPayment

		sequence := []stateDomain.StateID{
			stateDomain.PaymentReceived,
			stateDomain.PaymentAwaitingAddressValidation,
			stateDomain.PaymentAwaitingPostProcessing,
			stateDomain.PaymentAddToErrorReport,
		}
		var last *stateDomain.StateLogEntry
		for _, stateID := range sequence {
			entry, err := uc.RecordTransition(ctx, payment, flow, stateID, nil, nil)
			require.NoError(t, err)
			last = entry
		}

		history := repo.History(payment, flow)
		require.Len(t, history, len(sequence))
		for i := 1; i < len(history); i++ {
			require.NotNil(t, history[i].StartStateID)
			assert.Equal(t, history[i-1].EndStateID, *history[i].StartStateID)
			assert.True(t, history[i].CreatedAt.After(history[i-1].CreatedAt))
		}

		// The pointer references the entry with the greatest created_at.
		latest, err := repo.GetLatest(ctx, payment, flow)
		require.NoError(t, err)
		assert.Equal(t, last.ID, latest.ID)
		assert.Equal(t, history[len(history)-1].ID, latest.ID)
		assert.Equal(t, 1, repo.PointerCount(payment, flow))
	})

	t.Run("Success_FlowsAreIndependent", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))

		_, err := uc.RecordTransition(ctx, payment, stateDomain.FlowDelegatedPayment, stateDomain.PaymentAddToErrorReport, nil, nil)
		require.NoError(t, err)
		writeback, err := uc.RecordTransition(ctx, payment, stateDomain.FlowCaseWriteback, stateDomain.WritebackAdded, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, writeback.StartStateID)

		state, err := uc.GetCurrentState(ctx, payment, stateDomain.FlowDelegatedPayment)
		require.NoError(t, err)
		assert.Equal(t, stateDomain.PaymentAddToErrorReport, state.ID)
	})

	t.Run("Success_HistoryIsImmutable", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
		flow := stateDomain.FlowDelegatedPayment

		first, err := uc.RecordTransition(ctx, payment, flow, stateDomain.PaymentReceived, stateDomain.Outcome("first", nil), nil)
		require.NoError(t, err)
		snapshot := repo.History(payment, flow)[0]

		_, err = uc.RecordTransition(ctx, payment, flow, stateDomain.PaymentAwaitingAddressValidation, nil, nil)
		require.NoError(t, err)

		after := repo.History(payment, flow)[0]
		assert.Equal(t, first.ID, after.ID)
		assert.Equal(t, snapshot, after)
	})

	t.Run("Success_RetriesOnceAfterConflict", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t)
		repo.ForcedConflicts = 1
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))

		entry, err := uc.RecordTransition(ctx, payment, stateDomain.FlowDelegatedPayment, stateDomain.PaymentReceived, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, repo.UpsertCalls)
		assert.Equal(t, 1, repo.EntryCount())

		latest, err := repo.GetLatest(ctx, payment, stateDomain.FlowDelegatedPayment)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, latest.ID)
	})

	t.Run("Error_PersistentConflictIsRetryable", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t)
		repo.ForcedConflicts = 2
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))

		entry, err := uc.RecordTransition(ctx, payment, stateDomain.FlowDelegatedPayment, stateDomain.PaymentReceived, nil, nil)
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, apperrors.ErrRetryable)
		assert.True(t, apperrors.IsRetryable(err))
		assert.False(t, apperrors.IsFatal(err))
		assert.Equal(t, 2, repo.UpsertCalls)
		assert.Equal(t, 0, repo.EntryCount())
	})

	t.Run("Error_StateNotInFlowIsFatal", func(t *testing.T) {
		uc, repo, txManager := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))

		_, err := uc.RecordTransition(ctx, payment, stateDomain.FlowDelegatedPayment, stateDomain.WritebackSent, nil, nil)
		assert.ErrorIs(t, err, stateDomain.ErrStateNotInFlow)
		assert.True(t, apperrors.IsFatal(err))
		assert.Equal(t, 0, repo.EntryCount())
		assert.Equal(t, int64(0), txManager.WithTxCalls.Load())
	})

	t.Run("Error_EntityKindNotInFlow", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)
		claim := stateDomain.ClaimRef(uuid.Must(uuid.NewV7()))

		_, err := uc.RecordTransition(ctx, claim, stateDomain.FlowDelegatedPayment, stateDomain.PaymentReceived, nil, nil)
		assert.ErrorIs(t, err, stateDomain.ErrEntityKindNotInFlow)
		assert.True(t, apperrors.IsFatal(err))
	})

	t.Run("Error_UnsupportedEntityKind", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)
		entity := stateDomain.EntityRef{Kind: "employer", ID: uuid.Must(uuid.NewV7())}

		_, err := uc.RecordTransition(ctx, entity, stateDomain.FlowDelegatedPayment, stateDomain.PaymentReceived, nil, nil)
		assert.ErrorIs(t, err, stateDomain.ErrUnsupportedEntityKind)
	})
}

func TestStateLogUseCase_RecordTransition_WithMocks(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_TransactionFailure", func(t *testing.T) {
		txManager := databaseMocks.NewMockTxManager(t)
		txManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).
			Return(errors.New("begin failed")).
			Once()

		uc := NewStateLogUseCase(txManager, testutil.NewMemoryStateLogRepository(), slog.New(slog.DiscardHandler))
		entry, err := uc.RecordTransition(ctx, stateDomain.PaymentRef(uuid.Must(uuid.NewV7())),
			stateDomain.FlowDelegatedPayment, stateDomain.PaymentReceived, nil, nil)

		assert.Nil(t, entry)
		assert.EqualError(t, err, "begin failed")
	})
}

func TestStateLogUseCase_CreateFinishedTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_WritesWhenNotTerminal", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))

		_, err := uc.RecordTransition(ctx, payment, stateDomain.FlowDelegatedPayment, stateDomain.PaymentAwaitingPostProcessing, nil, nil)
		require.NoError(t, err)

		entry, err := uc.CreateFinishedTransition(ctx, payment, stateDomain.FlowDelegatedPayment,
			stateDomain.PaymentAddToErrorReport, stateDomain.Outcome("Payment cancelled.", nil), nil)
		require.NoError(t, err)
		assert.Equal(t, stateDomain.PaymentAddToErrorReport, entry.EndStateID)
		assert.Equal(t, 2, repo.EntryCount())
	})

	t.Run("Success_NoOpWhenAlreadyTerminal", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t)
		payment := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
		flow := stateDomain.FlowDelegatedPayment

		first, err := uc.CreateFinishedTransition(ctx, payment, flow, stateDomain.PaymentAddToErrorReport, nil, nil)
		require.NoError(t, err)

		again, err := uc.CreateFinishedTransition(ctx, payment, flow, stateDomain.PaymentAddToErrorReport, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, 1, repo.EntryCount())
		assert.Len(t, repo.History(payment, flow), 1)
	})

	t.Run("Error_StateNotInFlow", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)

		_, err := uc.CreateFinishedTransition(ctx, stateDomain.PaymentRef(uuid.Must(uuid.NewV7())),
			stateDomain.FlowCaseWriteback, stateDomain.PaymentAddToErrorReport, nil, nil)
		assert.ErrorIs(t, err, stateDomain.ErrStateNotInFlow)
	})
}

func TestStateLogUseCase_GetCurrentState(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_NilWhenNoPointer", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)

		state, err := uc.GetCurrentState(ctx, stateDomain.PaymentRef(uuid.Must(uuid.NewV7())), stateDomain.FlowDelegatedPayment)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("Success", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)
		eft := stateDomain.PubEFTRef(uuid.Must(uuid.NewV7()))

		_, err := uc.RecordTransition(ctx, eft, stateDomain.FlowDelegatedEFT, stateDomain.EFTPendingPrenote, nil, nil)
		require.NoError(t, err)

		state, err := uc.GetCurrentState(ctx, eft, stateDomain.FlowDelegatedEFT)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, stateDomain.EFTPendingPrenote, state.ID)
		assert.False(t, state.Terminal)
	})

	t.Run("Error_UnknownFlow", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t)

		_, err := uc.GetCurrentState(ctx, stateDomain.PaymentRef(uuid.Must(uuid.NewV7())), stateDomain.FlowID(99))
		assert.ErrorIs(t, err, stateDomain.ErrUnknownFlow)
	})
}

func TestStateLogUseCase_GetCurrentStateMulti(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t)

	claim := stateDomain.ClaimRef(uuid.Must(uuid.NewV7()))
	employee := stateDomain.EmployeeRef(uuid.Must(uuid.NewV7()))
	unknown := stateDomain.ClaimRef(uuid.Must(uuid.NewV7()))

	_, err := uc.RecordTransition(ctx, claim, stateDomain.FlowDelegatedClaim, stateDomain.ClaimExtracted, nil, nil)
	require.NoError(t, err)
	_, err = uc.RecordTransition(ctx, employee, stateDomain.FlowDelegatedClaim, stateDomain.ClaimExtractError, nil, nil)
	require.NoError(t, err)

	states, err := uc.GetCurrentStateMulti(ctx, []stateDomain.EntityRef{claim, employee, unknown}, stateDomain.FlowDelegatedClaim)
	require.NoError(t, err)
	assert.Len(t, states, 2)
	assert.Equal(t, stateDomain.ClaimExtracted, states[claim].ID)
	assert.Equal(t, stateDomain.ClaimExtractError, states[employee].ID)
	_, found := states[unknown]
	assert.False(t, found)

	_, err = uc.GetCurrentStateMulti(ctx, []stateDomain.EntityRef{stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))},
		stateDomain.FlowDelegatedClaim)
	assert.ErrorIs(t, err, stateDomain.ErrEntityKindNotInFlow)
}

func TestStateLogUseCase_CountByState(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t)
	flow := stateDomain.FlowDelegatedPayment

	a := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
	b := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
	for _, stateID := range []stateDomain.StateID{stateDomain.PaymentReceived, stateDomain.PaymentAwaitingPostProcessing} {
		_, err := uc.RecordTransition(ctx, a, flow, stateID, nil, nil)
		require.NoError(t, err)
	}
	_, err := uc.RecordTransition(ctx, b, flow, stateDomain.PaymentAwaitingPostProcessing, nil, nil)
	require.NoError(t, err)

	counts, err := uc.CountByState(ctx, flow)
	require.NoError(t, err)
	assert.Equal(t, map[stateDomain.StateID]int64{stateDomain.PaymentAwaitingPostProcessing: 2}, counts)

	_, err = uc.CountByState(ctx, stateDomain.FlowID(0))
	assert.ErrorIs(t, err, stateDomain.ErrUnknownFlow)
}

func TestStateLogUseCase_ListCurrentEntries(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t)
	flow := stateDomain.FlowDelegatedPayment

	moved := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
	waiting := stateDomain.PaymentRef(uuid.Must(uuid.NewV7()))
	_, err := uc.RecordTransition(ctx, moved, flow, stateDomain.PaymentCancellationPending, nil, nil)
	require.NoError(t, err)
	_, err = uc.RecordTransition(ctx, moved, flow, stateDomain.PaymentAddToErrorReport, nil, nil)
	require.NoError(t, err)
	_, err = uc.RecordTransition(ctx, waiting, flow, stateDomain.PaymentCancellationPending, nil, nil)
	require.NoError(t, err)

	entries, err := uc.ListCurrentEntries(ctx, flow, stateDomain.PaymentCancellationPending)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, waiting, entries[0].Entity)

	_, err = uc.ListCurrentEntries(ctx, stateDomain.FlowCaseWriteback, stateDomain.PaymentCancellationPending)
	assert.ErrorIs(t, err, stateDomain.ErrStateNotInFlow)
}
