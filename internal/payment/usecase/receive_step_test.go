package usecase

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	databaseMocks "github.com/allisson/paidleave/internal/database/mocks"
	apperrors "github.com/allisson/paidleave/internal/errors"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	"github.com/allisson/paidleave/internal/step"
)

const extractJSON = `{
  "employees": [
    {
      "customer_number": "1234",
      "first_name": "Jordan",
      "last_name": "Doe",
      "claims": [
        {
          "absence_id": "NTN-100-ABS-01",
          "absence_period_start": "2024-03-04",
          "absence_period_end": "2024-03-31",
          "leave_request_decision": "Approved",
          "payments": [
            {
              "pei_c_value": "7326",
              "pei_i_value": "301",
              "period_start": "2024-03-11",
              "period_end": "2024-03-17",
              "amount": "812.50",
              "eft": {"routing_nbr": "011000015", "account_nbr": "123456789", "bank_account_type": "Checking"}
            },
            {
              "pei_c_value": "7326",
              "pei_i_value": "302",
              "period_start": "2024-03-18",
              "period_end": "2024-03-24",
              "amount": 812.5
            }
          ]
        }
      ]
    }
  ]
}`

func TestDecodeExtract(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		extract, err := DecodeExtract(strings.NewReader(extractJSON))

		require.NoError(t, err)
		require.Len(t, extract.Employees, 1)
		payments := extract.Employees[0].Claims[0].Payments
		require.Len(t, payments, 2)
		assert.True(t, payments[0].Amount.Equal(decimal.RequireFromString("812.50")))
		assert.True(t, payments[1].Amount.Equal(decimal.RequireFromString("812.50")))
		require.NotNil(t, payments[0].EFT)
		assert.Nil(t, payments[1].EFT)
	})

	t.Run("Error_UnknownField", func(t *testing.T) {
		_, err := DecodeExtract(strings.NewReader(`{"employees": [], "claims": []}`))

		assert.ErrorIs(t, err, ErrInvalidExtract)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_Malformed", func(t *testing.T) {
		_, err := DecodeExtract(strings.NewReader(`{"employees": [`))
		assert.ErrorIs(t, err, ErrInvalidExtract)
	})
}

func TestReceiveStep_RunStep(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	run := &batchrunDomain.BatchRun{ID: uuid.Must(uuid.NewV7()), RunType: "payment-extract"}

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		extract, err := DecodeExtract(strings.NewReader(extractJSON))
		require.NoError(t, err)
		s := NewReceiveStep(f.uc, extract)
		sc := step.NewContext(run, logger, &databaseMocks.NopTxManager{})

		require.NoError(t, s.RunStep(ctx, sc))

		assert.Equal(t, ReceiveStepName, s.Name())
		assert.Equal(t, map[string]int64{
			CounterEmployeesReceived: 1,
			CounterClaimsReceived:    1,
			CounterEFTsRegistered:    1,
			CounterPaymentsReceived:  2,
		}, sc.Metrics.Snapshot())

		eftRef, err := f.uc.ResolvePubIndividualID(ctx, "E1")
		require.NoError(t, err)
		paymentRef, err := f.uc.ResolvePubIndividualID(ctx, "P2")
		require.NoError(t, err)

		payment, err := f.uc.Get(ctx, paymentRef.ID)
		require.NoError(t, err)
		require.NotNil(t, payment.PubEFTID)
		assert.Equal(t, eftRef.ID, *payment.PubEFTID)
		require.NotNil(t, payment.ClaimID)
		assert.Equal(t, "2024-03-11", payment.PeriodStartDate.Format(extractDateLayout))

		history := f.stateRepo.History(paymentRef, stateDomain.FlowDelegatedPayment)
		require.Len(t, history, 1)
		assert.Equal(t, stateDomain.PaymentReceived, history[0].EndStateID)
		assert.Equal(t, sc.BatchRunID(), history[0].BatchRunID)

		siblings, err := f.uc.ListByClaim(ctx, *payment.ClaimID)
		require.NoError(t, err)
		assert.Len(t, siblings, 2)
	})

	t.Run("Error_InvalidDate", func(t *testing.T) {
		f := newFixture(t)
		extract := &Extract{Employees: []ExtractEmployee{{
			CustomerNumber: "1234",
			FirstName:      "Jordan",
			LastName:       "Doe",
			Claims: []ExtractClaim{{
				AbsenceID:          "NTN-100-ABS-01",
				AbsencePeriodStart: "03/04/2024",
			}},
		}}}
		sc := step.NewContext(run, logger, &databaseMocks.NopTxManager{})

		err := NewReceiveStep(f.uc, extract).RunStep(ctx, sc)

		assert.ErrorIs(t, err, ErrInvalidExtract)
		assert.ErrorContains(t, err, "absence_period_start")
		assert.Zero(t, sc.Metrics.Get(CounterClaimsReceived))
	})

	t.Run("Error_InvalidPayment", func(t *testing.T) {
		f := newFixture(t)
		extract := &Extract{Employees: []ExtractEmployee{{
			CustomerNumber: "1234",
			FirstName:      "Jordan",
			LastName:       "Doe",
			Claims: []ExtractClaim{{
				AbsenceID: "NTN-100-ABS-01",
				Payments:  []ExtractPayment{{PeiCValue: "7326", PeiIValue: "301", Amount: decimal.Zero}},
			}},
		}}}
		sc := step.NewContext(run, logger, &databaseMocks.NopTxManager{})

		err := NewReceiveStep(f.uc, extract).RunStep(ctx, sc)

		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Zero(t, sc.Metrics.Get(CounterPaymentsReceived))
	})
}
