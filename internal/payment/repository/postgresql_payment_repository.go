// Package repository provides payment aggregate persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
)

const paymentColumns = `id, pub_individual_id, claim_id, employee_id, pub_eft_id, fineos_pei_c_value,
			  fineos_pei_i_value, period_start_date, period_end_date, amount, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLPaymentRepository implements payment persistence for PostgreSQL.
type PostgreSQLPaymentRepository struct {
	db *sql.DB
}

// NewPostgreSQLPaymentRepository creates a new PostgreSQL payment repository.
func NewPostgreSQLPaymentRepository(db *sql.DB) *PostgreSQLPaymentRepository {
	return &PostgreSQLPaymentRepository{db: db}
}

// Create inserts a payment and reads back the identity assigned to pub_individual_id.
func (p *PostgreSQLPaymentRepository) Create(ctx context.Context, payment *paymentDomain.Payment) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO payments (id, claim_id, employee_id, pub_eft_id, fineos_pei_c_value,
			  fineos_pei_i_value, period_start_date, period_end_date, amount, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING pub_individual_id`

	err := querier.QueryRowContext(
		ctx,
		query,
		payment.ID,
		payment.ClaimID,
		payment.EmployeeID,
		payment.PubEFTID,
		payment.FineosPeiCValue,
		payment.FineosPeiIValue,
		payment.PeriodStartDate,
		payment.PeriodEndDate,
		payment.Amount,
		payment.CreatedAt,
	).Scan(&payment.PubIndividualID)
	if err != nil {
		return apperrors.Wrap(err, "failed to create payment")
	}

	return nil
}

// Get returns a payment by id.
func (p *PostgreSQLPaymentRepository) Get(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPostgresPayment(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment")
	}

	return payment, nil
}

// GetByPubIndividualID returns the payment PUB knows as P<pubIndividualID>.
func (p *PostgreSQLPaymentRepository) GetByPubIndividualID(
	ctx context.Context,
	pubIndividualID int64,
) (*paymentDomain.Payment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE pub_individual_id = $1`

	payment, err := scanPostgresPayment(querier.QueryRowContext(ctx, query, pubIndividualID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment by pub individual id")
	}

	return payment, nil
}

// GetByIDs returns the payments with the given ids. Missing ids are skipped.
func (p *PostgreSQLPaymentRepository) GetByIDs(
	ctx context.Context,
	ids []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return p.listWhere(ctx, "id", ids)
}

// ListByClaimIDs returns the payments of the given claims.
func (p *PostgreSQLPaymentRepository) ListByClaimIDs(
	ctx context.Context,
	claimIDs []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return p.listWhere(ctx, "claim_id", claimIDs)
}

// ListByEmployeeIDs returns the payments of the given employees.
func (p *PostgreSQLPaymentRepository) ListByEmployeeIDs(
	ctx context.Context,
	employeeIDs []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return p.listWhere(ctx, "employee_id", employeeIDs)
}

func (p *PostgreSQLPaymentRepository) listWhere(
	ctx context.Context,
	column string,
	ids []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	if len(ids) == 0 {
		return []*paymentDomain.Payment{}, nil
	}

	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE ` + column + ` = ANY($1::uuid[])
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, pq.Array(database.UUIDStrings(ids)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list payments")
	}
	defer func() {
		_ = rows.Close()
	}()

	payments := make([]*paymentDomain.Payment, 0)
	for rows.Next() {
		payment, err := scanPostgresPayment(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan payment")
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate payments")
	}

	return payments, nil
}

func scanPostgresPayment(row rowScanner) (*paymentDomain.Payment, error) {
	var payment paymentDomain.Payment
	err := row.Scan(
		&payment.ID,
		&payment.PubIndividualID,
		&payment.ClaimID,
		&payment.EmployeeID,
		&payment.PubEFTID,
		&payment.FineosPeiCValue,
		&payment.FineosPeiIValue,
		&payment.PeriodStartDate,
		&payment.PeriodEndDate,
		&payment.Amount,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// PostgreSQLPubEFTRepository implements PUB EFT account persistence for PostgreSQL.
type PostgreSQLPubEFTRepository struct {
	db *sql.DB
}

// NewPostgreSQLPubEFTRepository creates a new PostgreSQL PUB EFT repository.
func NewPostgreSQLPubEFTRepository(db *sql.DB) *PostgreSQLPubEFTRepository {
	return &PostgreSQLPubEFTRepository{db: db}
}

// Create inserts an account and reads back the identity assigned to pub_individual_id.
func (p *PostgreSQLPubEFTRepository) Create(ctx context.Context, eft *paymentDomain.PubEFT) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO pub_efts (id, routing_nbr, account_nbr, bank_account_type, created_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING pub_individual_id`

	err := querier.QueryRowContext(
		ctx,
		query,
		eft.ID,
		eft.RoutingNbr,
		eft.AccountNbr,
		eft.BankAccountType,
		eft.CreatedAt,
	).Scan(&eft.PubIndividualID)
	if err != nil {
		return apperrors.Wrap(err, "failed to create pub eft")
	}

	return nil
}

// GetByPubIndividualID returns the account PUB knows as E<pubIndividualID>.
func (p *PostgreSQLPubEFTRepository) GetByPubIndividualID(
	ctx context.Context,
	pubIndividualID int64,
) (*paymentDomain.PubEFT, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, pub_individual_id, routing_nbr, account_nbr, bank_account_type, created_at
			  FROM pub_efts WHERE pub_individual_id = $1`

	var eft paymentDomain.PubEFT
	err := querier.QueryRowContext(ctx, query, pubIndividualID).Scan(
		&eft.ID,
		&eft.PubIndividualID,
		&eft.RoutingNbr,
		&eft.AccountNbr,
		&eft.BankAccountType,
		&eft.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPubEFTNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get pub eft")
	}

	return &eft, nil
}
