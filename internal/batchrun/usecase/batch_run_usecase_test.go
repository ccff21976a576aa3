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

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	databaseMocks "github.com/allisson/paidleave/internal/database/mocks"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// MockBatchRunRepository is a mock implementation of BatchRunRepository.
type MockBatchRunRepository struct {
	mock.Mock
}

func (m *MockBatchRunRepository) Create(ctx context.Context, run *batchrunDomain.BatchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockBatchRunRepository) Complete(ctx context.Context, run *batchrunDomain.BatchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockBatchRunRepository) Get(ctx context.Context, id uuid.UUID) (*batchrunDomain.BatchRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batchrunDomain.BatchRun), args.Error(1)
}

func (m *MockBatchRunRepository) ListByRunTypeSince(
	ctx context.Context,
	runType string,
	since time.Time,
) ([]*batchrunDomain.BatchRun, error) {
	args := m.Called(ctx, runType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batchrunDomain.BatchRun), args.Error(1)
}

func newUseCase(repo BatchRunRepository, now time.Time) *batchRunUseCase {
	uc := NewBatchRunUseCase(&databaseMocks.NopTxManager{}, repo, time.UTC, slog.New(slog.DiscardHandler)).(*batchRunUseCase)
	uc.now = func() time.Time { return now }
	return uc
}

func TestBatchRunUseCase_Begin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		txManager := &databaseMocks.NopTxManager{}
		uc := newUseCase(repo, now)
		uc.txManager = txManager

		repo.On("Create", mock.Anything, mock.MatchedBy(func(run *batchrunDomain.BatchRun) bool {
			return run.Source == "scheduler" &&
				run.RunType == "post-processing" &&
				run.Status == batchrunDomain.StatusInProgress &&
				run.StartedAt.Equal(now) &&
				run.EndedAt == nil
		})).Return(nil).Once()

		run, err := uc.Begin(ctx, "scheduler", "post-processing")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, run.ID)
		assert.Empty(t, run.MetricsReport)
		assert.Equal(t, int64(1), txManager.WithNewTxCalls.Load())
		repo.AssertExpectations(t)
	})

	t.Run("Error_MissingRunType", func(t *testing.T) {
		uc := newUseCase(&MockBatchRunRepository{}, now)

		_, err := uc.Begin(ctx, "scheduler", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.BatchRun")).Return(errors.New("db down")).Once()
		uc := newUseCase(repo, now)

		run, err := uc.Begin(ctx, "scheduler", "post-processing")
		assert.Nil(t, run)
		assert.ErrorContains(t, err, "failed to begin batch run")
	})
}

func TestBatchRunUseCase_Complete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		uc := newUseCase(repo, now)
		run := &batchrunDomain.BatchRun{
			ID:        uuid.Must(uuid.NewV7()),
			RunType:   "post-processing",
			Status:    batchrunDomain.StatusInProgress,
			StartedAt: now.Add(-time.Minute),
		}
		report := map[string]int64{"payment_in_waiting_week_count": 2}

		repo.On("Complete", mock.Anything, mock.MatchedBy(func(r *batchrunDomain.BatchRun) bool {
			return r.ID == run.ID && r.Status == batchrunDomain.StatusSuccess &&
				r.EndedAt != nil && r.MetricsReport["payment_in_waiting_week_count"] == 2
		})).Return(nil).Once()

		err := uc.Complete(ctx, run, batchrunDomain.StatusSuccess, report)
		require.NoError(t, err)
		assert.Equal(t, batchrunDomain.StatusSuccess, run.Status)
		require.NotNil(t, run.EndedAt)
		assert.True(t, run.EndedAt.Equal(now))

		// The report is copied, later mutations of the caller's map do not leak in.
		report["payment_in_waiting_week_count"] = 99
		assert.Equal(t, int64(2), run.Metric("payment_in_waiting_week_count"))
		repo.AssertExpectations(t)
	})

	t.Run("Error_SecondCompletionRejected", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		uc := newUseCase(repo, now)
		endedAt := now
		run := &batchrunDomain.BatchRun{ID: uuid.Must(uuid.NewV7()), Status: batchrunDomain.StatusSuccess, EndedAt: &endedAt}

		err := uc.Complete(ctx, run, batchrunDomain.StatusError, nil)
		assert.ErrorIs(t, err, batchrunDomain.ErrBatchRunAlreadyCompleted)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, batchrunDomain.StatusSuccess, run.Status)
		repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("Error_RepositoryRejectsConcurrentCompletion", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		uc := newUseCase(repo, now)
		run := &batchrunDomain.BatchRun{ID: uuid.Must(uuid.NewV7()), Status: batchrunDomain.StatusInProgress}

		repo.On("Complete", mock.Anything, mock.Anything).Return(batchrunDomain.ErrBatchRunAlreadyCompleted).Once()

		err := uc.Complete(ctx, run, batchrunDomain.StatusSuccess, nil)
		assert.ErrorIs(t, err, batchrunDomain.ErrBatchRunAlreadyCompleted)
		assert.Nil(t, run.EndedAt)
		assert.Equal(t, batchrunDomain.StatusInProgress, run.Status)
	})

	t.Run("Error_InProgressIsNotFinal", func(t *testing.T) {
		uc := newUseCase(&MockBatchRunRepository{}, now)
		run := &batchrunDomain.BatchRun{ID: uuid.Must(uuid.NewV7()), Status: batchrunDomain.StatusInProgress}

		err := uc.Complete(ctx, run, batchrunDomain.StatusInProgress, nil)
		assert.ErrorIs(t, err, batchrunDomain.ErrInvalidStatus)
	})
}

func TestBatchRunUseCase_WasProcessedWithinBusinessDays(t *testing.T) {
	ctx := context.Background()
	const runType = "writeback-transmission"
	const metric = "writeback_sent_count"

	// Friday 2024-03-08.
	runDate := time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		now          time.Time
		businessDays int
		count        int64
		want         bool
	}{
		{name: "same day", now: runDate.Add(3 * time.Hour), businessDays: 1, count: 1, want: true},
		{name: "same day with zero days", now: runDate.Add(time.Hour), businessDays: 0, count: 1, want: true},
		{name: "weekend does not count", now: runDate.AddDate(0, 0, 2), businessDays: 0, count: 1, want: true},
		{name: "exactly n business days", now: runDate.AddDate(0, 0, 3), businessDays: 1, count: 1, want: true},
		{name: "one past n business days", now: runDate.AddDate(0, 0, 4), businessDays: 1, count: 1, want: false},
		{name: "next business day with zero days", now: runDate.AddDate(0, 0, 3), businessDays: 0, count: 1, want: false},
		{name: "zero count never matches", now: runDate.Add(time.Hour), businessDays: 5, count: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockBatchRunRepository{}
			uc := newUseCase(repo, tt.now)

			run := &batchrunDomain.BatchRun{
				ID:            uuid.Must(uuid.NewV7()),
				RunType:       runType,
				Status:        batchrunDomain.StatusSuccess,
				MetricsReport: map[string]int64{metric: tt.count},
				StartedAt:     runDate,
			}
			since := batchrunDomain.LookbackStart(tt.now, tt.businessDays, time.UTC)
			repo.On("ListByRunTypeSince", ctx, runType, since).Return([]*batchrunDomain.BatchRun{run}, nil).Once()

			got, err := uc.WasProcessedWithinBusinessDays(ctx, runType, metric, tt.businessDays)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			repo.AssertExpectations(t)
		})
	}

	t.Run("Success_NoRuns", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		uc := newUseCase(repo, runDate)
		repo.On("ListByRunTypeSince", ctx, runType, mock.AnythingOfType("time.Time")).
			Return([]*batchrunDomain.BatchRun{}, nil).Once()

		got, err := uc.WasProcessedWithinBusinessDays(ctx, runType, metric, 3)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("Error_NegativeDays", func(t *testing.T) {
		uc := newUseCase(&MockBatchRunRepository{}, runDate)

		_, err := uc.WasProcessedWithinBusinessDays(ctx, runType, metric, -1)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &MockBatchRunRepository{}
		uc := newUseCase(repo, runDate)
		repo.On("ListByRunTypeSince", ctx, runType, mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := uc.WasProcessedWithinBusinessDays(ctx, runType, metric, 1)
		assert.ErrorContains(t, err, "failed to list batch runs")
	})
}
