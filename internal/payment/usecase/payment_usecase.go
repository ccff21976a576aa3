package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	appValidation "github.com/allisson/paidleave/internal/validation"
)

// paymentUseCase implements PaymentUseCase.
type paymentUseCase struct {
	txManager    database.TxManager
	employeeRepo EmployeeRepository
	claimRepo    ClaimRepository
	pubEFTRepo   PubEFTRepository
	paymentRepo  PaymentRepository
	stateLogs    stateUseCase.StateLogUseCase
	logger       *slog.Logger
	now          func() time.Time
}

// NewPaymentUseCase creates a new PaymentUseCase with the provided dependencies.
func NewPaymentUseCase(
	txManager database.TxManager,
	employeeRepo EmployeeRepository,
	claimRepo ClaimRepository,
	pubEFTRepo PubEFTRepository,
	paymentRepo PaymentRepository,
	stateLogs stateUseCase.StateLogUseCase,
	logger *slog.Logger,
) PaymentUseCase {
	return &paymentUseCase{
		txManager:    txManager,
		employeeRepo: employeeRepo,
		claimRepo:    claimRepo,
		pubEFTRepo:   pubEFTRepo,
		paymentRepo:  paymentRepo,
		stateLogs:    stateLogs,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func validateReceiveEmployeeInput(input ReceiveEmployeeInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.FineosCustomerNumber, validation.Required, appValidation.NotBlank),
		validation.Field(&input.FirstName, validation.Required, appValidation.NotBlank),
		validation.Field(&input.LastName, validation.Required, appValidation.NotBlank),
	)
	return appValidation.WrapValidationError(err)
}

func validateReceiveClaimInput(input ReceiveClaimInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.EmployeeID, appValidation.NotNilUUID),
		validation.Field(&input.FineosAbsenceID, validation.Required, appValidation.NoWhitespace),
		validation.Field(&input.LeaveRequestDecision, validation.In(
			paymentDomain.LeaveRequestDecisionApproved,
			paymentDomain.LeaveRequestDecisionInReview,
			paymentDomain.LeaveRequestDecisionPending,
			paymentDomain.LeaveRequestDecisionDenied,
		)),
	)
	if err == nil && input.AbsencePeriodStartDate != nil && input.AbsencePeriodEndDate != nil &&
		input.AbsencePeriodEndDate.Before(*input.AbsencePeriodStartDate) {
		err = validation.Errors{
			"AbsencePeriodEndDate": validation.NewError("validation_period", "must not be before the start date"),
		}
	}
	return appValidation.WrapValidationError(err)
}

func validateReceivePaymentInput(input ReceivePaymentInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.FineosPeiCValue, validation.Required, appValidation.NoWhitespace),
		validation.Field(&input.FineosPeiIValue, validation.Required, appValidation.NoWhitespace),
		validation.Field(&input.Amount, appValidation.PositiveDecimal),
	)
	if err == nil && input.PeriodStartDate != nil && input.PeriodEndDate != nil &&
		input.PeriodEndDate.Before(*input.PeriodStartDate) {
		err = validation.Errors{
			"PeriodEndDate": validation.NewError("validation_period", "must not be before the start date"),
		}
	}
	return appValidation.WrapValidationError(err)
}

func validateRegisterPubEFTInput(input RegisterPubEFTInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.RoutingNbr, validation.Required, validation.Length(9, 9)),
		validation.Field(&input.AccountNbr, validation.Required, appValidation.NoWhitespace),
		validation.Field(&input.BankAccountType, validation.Required, validation.In("Checking", "Savings")),
	)
	return appValidation.WrapValidationError(err)
}

// ReceiveEmployee stores an extracted employee.
func (p *paymentUseCase) ReceiveEmployee(
	ctx context.Context,
	input ReceiveEmployeeInput,
) (*paymentDomain.Employee, error) {
	if err := validateReceiveEmployeeInput(input); err != nil {
		return nil, err
	}

	employee := &paymentDomain.Employee{
		ID:                   uuid.Must(uuid.NewV7()),
		FineosCustomerNumber: strings.TrimSpace(input.FineosCustomerNumber),
		FirstName:            strings.TrimSpace(input.FirstName),
		LastName:             strings.TrimSpace(input.LastName),
		CreatedAt:            p.now(),
	}

	if err := p.employeeRepo.Create(ctx, employee); err != nil {
		return nil, err
	}

	return employee, nil
}

// ReceiveClaim stores an extracted claim and records ClaimExtracted in one transaction.
func (p *paymentUseCase) ReceiveClaim(
	ctx context.Context,
	input ReceiveClaimInput,
	batchRunID *uuid.UUID,
) (*paymentDomain.Claim, error) {
	if err := validateReceiveClaimInput(input); err != nil {
		return nil, err
	}

	claim := &paymentDomain.Claim{
		ID:                     uuid.Must(uuid.NewV7()),
		EmployeeID:             input.EmployeeID,
		FineosAbsenceID:        input.FineosAbsenceID,
		AbsencePeriodStartDate: input.AbsencePeriodStartDate,
		AbsencePeriodEndDate:   input.AbsencePeriodEndDate,
		LeaveRequestDecision:   input.LeaveRequestDecision,
		CreatedAt:              p.now(),
	}

	err := p.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := p.claimRepo.Create(ctx, claim); err != nil {
			return err
		}
		_, err := p.stateLogs.RecordTransition(
			ctx,
			stateDomain.ClaimRef(claim.ID),
			stateDomain.FlowDelegatedClaim,
			stateDomain.ClaimExtracted,
			stateDomain.Outcome("Claim extracted", nil),
			batchRunID,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return claim, nil
}

// Receive stores an extracted payment and records PaymentReceived in one transaction.
// The database assigns the payment's PUB individual id.
func (p *paymentUseCase) Receive(
	ctx context.Context,
	input ReceivePaymentInput,
	batchRunID *uuid.UUID,
) (*paymentDomain.Payment, error) {
	if err := validateReceivePaymentInput(input); err != nil {
		return nil, err
	}

	payment := &paymentDomain.Payment{
		ID:              uuid.Must(uuid.NewV7()),
		ClaimID:         input.ClaimID,
		EmployeeID:      input.EmployeeID,
		PubEFTID:        input.PubEFTID,
		FineosPeiCValue: input.FineosPeiCValue,
		FineosPeiIValue: input.FineosPeiIValue,
		PeriodStartDate: input.PeriodStartDate,
		PeriodEndDate:   input.PeriodEndDate,
		Amount:          input.Amount,
		CreatedAt:       p.now(),
	}

	err := p.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := p.paymentRepo.Create(ctx, payment); err != nil {
			return err
		}
		_, err := p.stateLogs.RecordTransition(
			ctx,
			stateDomain.PaymentRef(payment.ID),
			stateDomain.FlowDelegatedPayment,
			stateDomain.PaymentReceived,
			stateDomain.Outcome("Payment received", map[string]any{
				"fineos_pei_c_value": payment.FineosPeiCValue,
				"fineos_pei_i_value": payment.FineosPeiIValue,
			}),
			batchRunID,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("payment received",
		slog.String("payment_id", payment.ID.String()),
		slog.Int64("pub_individual_id", payment.PubIndividualID),
	)

	return payment, nil
}

// RegisterPubEFT stores a bank account and records EFTPendingPrenote in one transaction.
func (p *paymentUseCase) RegisterPubEFT(
	ctx context.Context,
	input RegisterPubEFTInput,
	batchRunID *uuid.UUID,
) (*paymentDomain.PubEFT, error) {
	if err := validateRegisterPubEFTInput(input); err != nil {
		return nil, err
	}

	eft := &paymentDomain.PubEFT{
		ID:              uuid.Must(uuid.NewV7()),
		RoutingNbr:      input.RoutingNbr,
		AccountNbr:      input.AccountNbr,
		BankAccountType: input.BankAccountType,
		CreatedAt:       p.now(),
	}

	err := p.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := p.pubEFTRepo.Create(ctx, eft); err != nil {
			return err
		}
		_, err := p.stateLogs.RecordTransition(
			ctx,
			stateDomain.PubEFTRef(eft.ID),
			stateDomain.FlowDelegatedEFT,
			stateDomain.EFTPendingPrenote,
			stateDomain.Outcome("EFT account registered", nil),
			batchRunID,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return eft, nil
}

// Get returns a payment by id.
func (p *paymentUseCase) Get(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	return p.paymentRepo.Get(ctx, id)
}

// ListByClaim returns every payment of the claim.
func (p *paymentUseCase) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*paymentDomain.Payment, error) {
	return p.paymentRepo.ListByClaimIDs(ctx, []uuid.UUID{claimID})
}

// ResolvePubIndividualID maps a PUB individual id to the account or payment it names.
func (p *paymentUseCase) ResolvePubIndividualID(ctx context.Context, text string) (stateDomain.EntityRef, error) {
	id, ok := paymentDomain.ParsePubIndividualID(text)
	if !ok {
		return stateDomain.EntityRef{}, paymentDomain.ErrInvalidPubIndividualID
	}

	switch id.Kind {
	case paymentDomain.PubIDPrenote:
		eft, err := p.pubEFTRepo.GetByPubIndividualID(ctx, id.Value)
		if err != nil {
			return stateDomain.EntityRef{}, err
		}
		return stateDomain.PubEFTRef(eft.ID), nil
	default:
		payment, err := p.paymentRepo.GetByPubIndividualID(ctx, id.Value)
		if err != nil {
			return stateDomain.EntityRef{}, err
		}
		return stateDomain.PaymentRef(payment.ID), nil
	}
}

// BuildContainers loads payments, claims, employees, the employees' other payments with
// their current states and the employees' claims, one query each.
func (p *paymentUseCase) BuildContainers(
	ctx context.Context,
	entries []*stateDomain.StateLogEntry,
) ([]*paymentDomain.Container, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	paymentIDs := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if entry.Entity.Kind != stateDomain.EntityPayment {
			return nil, apperrors.Wrapf(stateDomain.ErrEntityKindNotInFlow, "entry %s", entry.ID)
		}
		paymentIDs = append(paymentIDs, entry.Entity.ID)
	}

	payments, err := p.paymentRepo.GetByIDs(ctx, paymentIDs)
	if err != nil {
		return nil, err
	}
	paymentsByID := make(map[uuid.UUID]*paymentDomain.Payment, len(payments))
	var claimIDs, employeeIDs []uuid.UUID
	for _, payment := range payments {
		paymentsByID[payment.ID] = payment
		if payment.ClaimID != nil {
			claimIDs = appendUnique(claimIDs, *payment.ClaimID)
		}
		if payment.EmployeeID != nil {
			employeeIDs = appendUnique(employeeIDs, *payment.EmployeeID)
		}
	}

	claims, err := p.claimRepo.GetByIDs(ctx, claimIDs)
	if err != nil {
		return nil, err
	}
	claimsByID := make(map[uuid.UUID]*paymentDomain.Claim, len(claims))
	for _, claim := range claims {
		claimsByID[claim.ID] = claim
	}

	employees, err := p.employeeRepo.GetByIDs(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}
	employeesByID := make(map[uuid.UUID]*paymentDomain.Employee, len(employees))
	for _, employee := range employees {
		employeesByID[employee.ID] = employee
	}

	relatedPayments, err := p.paymentRepo.ListByEmployeeIDs(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}
	relatedRefs := make([]stateDomain.EntityRef, 0, len(relatedPayments))
	for _, related := range relatedPayments {
		relatedRefs = append(relatedRefs, stateDomain.PaymentRef(related.ID))
	}
	relatedStates, err := p.stateLogs.GetCurrentStateMulti(ctx, relatedRefs, stateDomain.FlowDelegatedPayment)
	if err != nil {
		return nil, err
	}
	relatedByEmployee := make(map[uuid.UUID][]paymentDomain.RelatedPayment)
	for _, related := range relatedPayments {
		if related.EmployeeID == nil {
			continue
		}
		rp := paymentDomain.RelatedPayment{Payment: related}
		if state, ok := relatedStates[stateDomain.PaymentRef(related.ID)]; ok {
			rp.State = &state
		}
		relatedByEmployee[*related.EmployeeID] = append(relatedByEmployee[*related.EmployeeID], rp)
	}

	employeeClaims, err := p.claimRepo.ListByEmployeeIDs(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}
	claimsByEmployee := make(map[uuid.UUID][]*paymentDomain.Claim)
	for _, claim := range employeeClaims {
		claimsByEmployee[claim.EmployeeID] = append(claimsByEmployee[claim.EmployeeID], claim)
	}

	containers := make([]*paymentDomain.Container, 0, len(entries))
	for _, entry := range entries {
		payment, ok := paymentsByID[entry.Entity.ID]
		if !ok {
			return nil, apperrors.Wrapf(paymentDomain.ErrPaymentNotFound, "payment %s", entry.Entity.ID)
		}

		params := paymentDomain.ContainerParams{Payment: payment, StateLog: entry}
		if payment.ClaimID != nil {
			params.Claim = claimsByID[*payment.ClaimID]
		}
		if payment.EmployeeID != nil {
			params.Employee = employeesByID[*payment.EmployeeID]
			params.RelatedPayments = relatedByEmployee[*payment.EmployeeID]
			params.EmployeeClaims = claimsByEmployee[*payment.EmployeeID]
		}
		containers = append(containers, paymentDomain.NewContainer(params))
	}

	return containers, nil
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
