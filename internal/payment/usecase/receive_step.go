package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/paidleave/internal/errors"
	"github.com/allisson/paidleave/internal/step"
)

const (
	// ReceiveStepName identifies the extract ingestion step.
	ReceiveStepName = "payment-extract-receive"

	CounterEmployeesReceived = "employee_received_count"
	CounterClaimsReceived    = "claim_received_count"
	CounterPaymentsReceived  = "payment_received_count"
	CounterEFTsRegistered    = "pub_eft_registered_count"
)

const extractDateLayout = "2006-01-02"

// ErrInvalidExtract indicates an extract file that cannot be decoded.
var ErrInvalidExtract = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid payment extract")

// Extract is a case system extract: employees with their claims and the payments of
// each claim.
type Extract struct {
	Employees []ExtractEmployee `json:"employees"`
}

// ExtractEmployee is one employee of an extract.
type ExtractEmployee struct {
	CustomerNumber string         `json:"customer_number"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Claims         []ExtractClaim `json:"claims"`
}

// ExtractClaim is one claim of an extract. Dates use the YYYY-MM-DD layout.
type ExtractClaim struct {
	AbsenceID            string           `json:"absence_id"`
	AbsencePeriodStart   string           `json:"absence_period_start"`
	AbsencePeriodEnd     string           `json:"absence_period_end"`
	LeaveRequestDecision string           `json:"leave_request_decision"`
	Payments             []ExtractPayment `json:"payments"`
}

// ExtractPayment is one payment of an extract. EFT is set for payments by direct
// deposit.
type ExtractPayment struct {
	PeiCValue   string          `json:"pei_c_value"`
	PeiIValue   string          `json:"pei_i_value"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Amount      decimal.Decimal `json:"amount"`
	EFT         *ExtractEFT     `json:"eft,omitempty"`
}

// ExtractEFT is the bank account a payment is deposited to.
type ExtractEFT struct {
	RoutingNbr      string `json:"routing_nbr"`
	AccountNbr      string `json:"account_nbr"`
	BankAccountType string `json:"bank_account_type"`
}

// DecodeExtract reads a JSON extract. Unknown fields are rejected.
func DecodeExtract(r io.Reader) (*Extract, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var extract Extract
	if err := decoder.Decode(&extract); err != nil {
		return nil, apperrors.Wrapf(ErrInvalidExtract, "decode: %v", err)
	}
	return &extract, nil
}

// ReceiveStep stores an extract within a batch run. Every received payment starts in
// PaymentReceived; the whole extract is rolled back when one record is invalid.
type ReceiveStep struct {
	payments PaymentUseCase
	extract  *Extract
}

// NewReceiveStep creates a ReceiveStep for extract.
func NewReceiveStep(payments PaymentUseCase, extract *Extract) *ReceiveStep {
	return &ReceiveStep{payments: payments, extract: extract}
}

// Name returns ReceiveStepName.
func (s *ReceiveStep) Name() string { return ReceiveStepName }

// RunStep receives employees, claims, EFT accounts and payments in extract order.
func (s *ReceiveStep) RunStep(ctx context.Context, sc *step.Context) error {
	for _, e := range s.extract.Employees {
		employee, err := s.payments.ReceiveEmployee(ctx, ReceiveEmployeeInput{
			FineosCustomerNumber: e.CustomerNumber,
			FirstName:            e.FirstName,
			LastName:             e.LastName,
		})
		if err != nil {
			return err
		}
		sc.Metrics.Increment(CounterEmployeesReceived)

		for _, c := range e.Claims {
			if err := s.receiveClaim(ctx, sc, employee.ID, c); err != nil {
				return err
			}
		}
	}

	sc.Logger.Info("payment extract received",
		slog.Int64("employees", sc.Metrics.Get(CounterEmployeesReceived)),
		slog.Int64("payments", sc.Metrics.Get(CounterPaymentsReceived)),
	)
	return nil
}

func (s *ReceiveStep) receiveClaim(ctx context.Context, sc *step.Context, employeeID uuid.UUID, c ExtractClaim) error {
	start, err := parseExtractDate("absence_period_start", c.AbsencePeriodStart)
	if err != nil {
		return err
	}
	end, err := parseExtractDate("absence_period_end", c.AbsencePeriodEnd)
	if err != nil {
		return err
	}

	claim, err := s.payments.ReceiveClaim(ctx, ReceiveClaimInput{
		EmployeeID:             employeeID,
		FineosAbsenceID:        c.AbsenceID,
		AbsencePeriodStartDate: start,
		AbsencePeriodEndDate:   end,
		LeaveRequestDecision:   c.LeaveRequestDecision,
	}, sc.BatchRunID())
	if err != nil {
		return err
	}
	sc.Metrics.Increment(CounterClaimsReceived)

	for _, p := range c.Payments {
		if err := s.receivePayment(ctx, sc, claim.ID, employeeID, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReceiveStep) receivePayment(
	ctx context.Context,
	sc *step.Context,
	claimID, employeeID uuid.UUID,
	p ExtractPayment,
) error {
	start, err := parseExtractDate("period_start", p.PeriodStart)
	if err != nil {
		return err
	}
	end, err := parseExtractDate("period_end", p.PeriodEnd)
	if err != nil {
		return err
	}

	var pubEFTID *uuid.UUID
	if p.EFT != nil {
		eft, err := s.payments.RegisterPubEFT(ctx, RegisterPubEFTInput{
			RoutingNbr:      p.EFT.RoutingNbr,
			AccountNbr:      p.EFT.AccountNbr,
			BankAccountType: p.EFT.BankAccountType,
		}, sc.BatchRunID())
		if err != nil {
			return err
		}
		pubEFTID = &eft.ID
		sc.Metrics.Increment(CounterEFTsRegistered)
	}

	_, err = s.payments.Receive(ctx, ReceivePaymentInput{
		ClaimID:         &claimID,
		EmployeeID:      &employeeID,
		PubEFTID:        pubEFTID,
		FineosPeiCValue: p.PeiCValue,
		FineosPeiIValue: p.PeiIValue,
		PeriodStartDate: start,
		PeriodEndDate:   end,
		Amount:          p.Amount,
	}, sc.BatchRunID())
	if err != nil {
		return err
	}
	sc.Metrics.Increment(CounterPaymentsReceived)
	return nil
}

// parseExtractDate returns nil for an empty value.
func parseExtractDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(extractDateLayout, value)
	if err != nil {
		return nil, apperrors.Wrapf(ErrInvalidExtract, "%s %q", field, value)
	}
	return &t, nil
}
