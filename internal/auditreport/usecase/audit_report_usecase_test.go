package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gocloud.dev/blob/memblob"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	databaseMocks "github.com/allisson/paidleave/internal/database/mocks"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// MockAuditReportRepository is a mock implementation of AuditReportRepository.
type MockAuditReportRepository struct {
	mock.Mock
}

func (m *MockAuditReportRepository) Create(ctx context.Context, detail *auditDomain.AuditReportDetail) error {
	args := m.Called(ctx, detail)
	return args.Error(0)
}

func (m *MockAuditReportRepository) ListByBatchRun(
	ctx context.Context,
	batchRunID uuid.UUID,
	codes []auditDomain.ReasonCode,
) ([]*auditDomain.AuditReportDetail, error) {
	args := m.Called(ctx, batchRunID, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditReportDetail), args.Error(1)
}

func TestAuditReportUseCase_Stage(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	paymentID := uuid.Must(uuid.NewV7())
	batchRunID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		repo := &MockAuditReportRepository{}
		txManager := databaseMocks.NewMockTxManager(t)
		uc := NewAuditReportUseCase(txManager, repo, nil, logger)

		txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		repo.On("Create", ctx, mock.MatchedBy(func(d *auditDomain.AuditReportDetail) bool {
			return d.PaymentID == paymentID && d.BatchRunID == &batchRunID && d.ID != uuid.Nil
		})).Return(nil).Twice()

		details, err := uc.Stage(ctx, paymentID, []auditDomain.Entry{
			auditDomain.NewEntry(auditDomain.ReasonLeavePlanInReview, nil),
			auditDomain.NewEntry(auditDomain.ReasonInWaitingWeek, map[string]any{"offset_days": 0}),
		}, &batchRunID)

		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.Equal(t, auditDomain.ReasonLeavePlanInReview, details[0].ReasonCode)
		assert.Equal(t, auditDomain.ReasonInWaitingWeek, details[1].ReasonCode)
		repo.AssertExpectations(t)
	})

	t.Run("Success_NoEntries", func(t *testing.T) {
		repo := &MockAuditReportRepository{}
		uc := NewAuditReportUseCase(databaseMocks.NewMockTxManager(t), repo, nil, logger)

		details, err := uc.Stage(ctx, paymentID, nil, &batchRunID)
		assert.NoError(t, err)
		assert.Nil(t, details)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Error_UnknownReasonWritesNothing", func(t *testing.T) {
		repo := &MockAuditReportRepository{}
		uc := NewAuditReportUseCase(databaseMocks.NewMockTxManager(t), repo, nil, logger)

		_, err := uc.Stage(ctx, paymentID, []auditDomain.Entry{
			auditDomain.NewEntry(auditDomain.ReasonLeavePlanInReview, nil),
			{ReasonCode: "made_up"},
		}, &batchRunID)

		assert.ErrorIs(t, err, auditDomain.ErrUnknownReasonCode)
		assert.True(t, apperrors.IsFatal(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &MockAuditReportRepository{}
		txManager := databaseMocks.NewMockTxManager(t)
		uc := NewAuditReportUseCase(txManager, repo, nil, logger)

		txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		repo.On("Create", ctx, mock.Anything).Return(errors.New("fk violation")).Once()

		_, err := uc.Stage(ctx, paymentID, []auditDomain.Entry{
			auditDomain.NewEntry(auditDomain.ReasonLeavePlanInReview, nil),
		}, nil)
		assert.EqualError(t, err, "fk violation")
	})
}

func TestAuditReportUseCase_ListByBatchRun(t *testing.T) {
	ctx := context.Background()
	batchRunID := uuid.Must(uuid.NewV7())

	t.Run("Success_FiltersByReportType", func(t *testing.T) {
		repo := &MockAuditReportRepository{}
		uc := NewAuditReportUseCase(databaseMocks.NewMockTxManager(t), repo, nil, slog.New(slog.DiscardHandler))

		expected := []*auditDomain.AuditReportDetail{{ID: uuid.Must(uuid.NewV7())}}
		repo.On("ListByBatchRun", ctx, batchRunID, []auditDomain.ReasonCode{
			auditDomain.ReasonLeaveDurationMaxExceeded,
			auditDomain.ReasonMaxWeeklyBenefitsExceeded,
			auditDomain.ReasonPaymentCancelled,
		}).Return(expected, nil).Once()

		details, err := uc.ListByBatchRun(ctx, batchRunID, auditDomain.ReportTypePaymentError)
		require.NoError(t, err)
		assert.Equal(t, expected, details)
		repo.AssertExpectations(t)
	})

	t.Run("Error_InvalidReportType", func(t *testing.T) {
		uc := NewAuditReportUseCase(
			databaseMocks.NewMockTxManager(t),
			&MockAuditReportRepository{},
			nil,
			slog.New(slog.DiscardHandler),
		)

		_, err := uc.ListByBatchRun(ctx, batchRunID, "weekly")
		assert.ErrorIs(t, err, auditDomain.ErrInvalidReportType)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestAuditReportUseCase_Export(t *testing.T) {
	ctx := context.Background()
	batchRunID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		bucket := memblob.OpenBucket(nil)
		defer func() {
			_ = bucket.Close()
		}()
		repo := &MockAuditReportRepository{}
		uc := NewAuditReportUseCase(databaseMocks.NewMockTxManager(t), repo, bucket, slog.New(slog.DiscardHandler))

		paymentID := uuid.Must(uuid.NewV7())
		entry := auditDomain.NewEntry(auditDomain.ReasonInWaitingWeek, map[string]any{
			"waiting_week_status": "in_waiting_week",
		})
		repo.On("ListByBatchRun", ctx, batchRunID, mock.Anything).Return([]*auditDomain.AuditReportDetail{{
			ID:         uuid.Must(uuid.NewV7()),
			PaymentID:  paymentID,
			ReasonCode: entry.ReasonCode,
			Message:    entry.Message,
			BatchRunID: &batchRunID,
			CreatedAt:  time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		}}, nil).Once()

		result, err := uc.Export(ctx, batchRunID, auditDomain.ReportTypePaymentAudit)
		require.NoError(t, err)
		assert.Equal(t, "payment_audit/"+batchRunID.String()+".xlsx", result.Key)
		assert.Equal(t, 1, result.Rows)

		data, err := bucket.ReadAll(ctx, result.Key)
		require.NoError(t, err)
		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		rows, err := f.GetRows("payment_audit")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Payment ID", rows[0][0])
		assert.Equal(t, paymentID.String(), rows[1][0])
		assert.Equal(t, "in_waiting_week", rows[1][1])
		assert.Equal(t, "Payment period is within the waiting week", rows[1][3])
		assert.JSONEq(t, `{"waiting_week_status":"in_waiting_week"}`, rows[1][4])
		assert.Equal(t, "2024-03-04T09:00:00Z", rows[1][6])
	})

	t.Run("Error_NoBucket", func(t *testing.T) {
		uc := NewAuditReportUseCase(
			databaseMocks.NewMockTxManager(t),
			&MockAuditReportRepository{},
			nil,
			slog.New(slog.DiscardHandler),
		)

		_, err := uc.Export(ctx, batchRunID, auditDomain.ReportTypePaymentAudit)
		assert.ErrorContains(t, err, "bucket is not configured")
	})
}
