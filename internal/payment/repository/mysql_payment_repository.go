package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
)

// MySQLPaymentRepository implements payment persistence for MySQL.
type MySQLPaymentRepository struct {
	db *sql.DB
}

// NewMySQLPaymentRepository creates a new MySQL payment repository.
func NewMySQLPaymentRepository(db *sql.DB) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{db: db}
}

// Create inserts a payment and reads back the AUTO_INCREMENT pub_individual_id.
func (m *MySQLPaymentRepository) Create(ctx context.Context, payment *paymentDomain.Payment) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO payments (id, claim_id, employee_id, pub_eft_id, fineos_pei_c_value,
			  fineos_pei_i_value, period_start_date, period_end_date, amount, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(payment.ID),
		database.MySQLNullUUID(payment.ClaimID),
		database.MySQLNullUUID(payment.EmployeeID),
		database.MySQLNullUUID(payment.PubEFTID),
		payment.FineosPeiCValue,
		payment.FineosPeiIValue,
		payment.PeriodStartDate,
		payment.PeriodEndDate,
		payment.Amount,
		payment.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create payment")
	}

	payment.PubIndividualID, err = result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to get pub individual id")
	}

	return nil
}

// Get returns a payment by id.
func (m *MySQLPaymentRepository) Get(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment, err := scanMySQLPayment(querier.QueryRowContext(ctx, query, database.MySQLUUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment")
	}

	return payment, nil
}

// GetByPubIndividualID returns the payment PUB knows as P<pubIndividualID>.
func (m *MySQLPaymentRepository) GetByPubIndividualID(
	ctx context.Context,
	pubIndividualID int64,
) (*paymentDomain.Payment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE pub_individual_id = ?`

	payment, err := scanMySQLPayment(querier.QueryRowContext(ctx, query, pubIndividualID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentDomain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment by pub individual id")
	}

	return payment, nil
}

// GetByIDs returns the payments with the given ids. Missing ids are skipped.
func (m *MySQLPaymentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Payment, error) {
	return m.listWhere(ctx, "id", ids)
}

// ListByClaimIDs returns the payments of the given claims.
func (m *MySQLPaymentRepository) ListByClaimIDs(
	ctx context.Context,
	claimIDs []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return m.listWhere(ctx, "claim_id", claimIDs)
}

// ListByEmployeeIDs returns the payments of the given employees.
func (m *MySQLPaymentRepository) ListByEmployeeIDs(
	ctx context.Context,
	employeeIDs []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return m.listWhere(ctx, "employee_id", employeeIDs)
}

func (m *MySQLPaymentRepository) listWhere(
	ctx context.Context,
	column string,
	ids []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	if len(ids) == 0 {
		return []*paymentDomain.Payment{}, nil
	}

	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + paymentColumns + ` FROM payments
			  WHERE ` + column + ` IN (` + database.MySQLInList(len(ids)) + `)
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, database.MySQLUUIDArgs(ids)...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list payments")
	}
	defer func() {
		_ = rows.Close()
	}()

	payments := make([]*paymentDomain.Payment, 0)
	for rows.Next() {
		payment, err := scanMySQLPayment(rows)
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

func scanMySQLPayment(row rowScanner) (*paymentDomain.Payment, error) {
	var payment paymentDomain.Payment
	var id, claimID, employeeID, pubEFTID []byte
	var periodStart, periodEnd sql.NullTime

	err := row.Scan(
		&id,
		&payment.PubIndividualID,
		&claimID,
		&employeeID,
		&pubEFTID,
		&payment.FineosPeiCValue,
		&payment.FineosPeiIValue,
		&periodStart,
		&periodEnd,
		&payment.Amount,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payment.ID, err = database.ParseMySQLUUID(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal payment id")
	}
	if payment.ClaimID, err = database.ParseMySQLNullUUID(claimID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal claim id")
	}
	if payment.EmployeeID, err = database.ParseMySQLNullUUID(employeeID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal employee id")
	}
	if payment.PubEFTID, err = database.ParseMySQLNullUUID(pubEFTID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal pub eft id")
	}
	payment.PeriodStartDate = nullTimePtr(periodStart)
	payment.PeriodEndDate = nullTimePtr(periodEnd)

	return &payment, nil
}

// MySQLPubEFTRepository implements PUB EFT account persistence for MySQL.
type MySQLPubEFTRepository struct {
	db *sql.DB
}

// NewMySQLPubEFTRepository creates a new MySQL PUB EFT repository.
func NewMySQLPubEFTRepository(db *sql.DB) *MySQLPubEFTRepository {
	return &MySQLPubEFTRepository{db: db}
}

// Create inserts an account and reads back the AUTO_INCREMENT pub_individual_id.
func (m *MySQLPubEFTRepository) Create(ctx context.Context, eft *paymentDomain.PubEFT) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO pub_efts (id, routing_nbr, account_nbr, bank_account_type, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(eft.ID),
		eft.RoutingNbr,
		eft.AccountNbr,
		eft.BankAccountType,
		eft.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create pub eft")
	}

	eft.PubIndividualID, err = result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to get pub individual id")
	}

	return nil
}

// GetByPubIndividualID returns the account PUB knows as E<pubIndividualID>.
func (m *MySQLPubEFTRepository) GetByPubIndividualID(
	ctx context.Context,
	pubIndividualID int64,
) (*paymentDomain.PubEFT, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, pub_individual_id, routing_nbr, account_nbr, bank_account_type, created_at
			  FROM pub_efts WHERE pub_individual_id = ?`

	var eft paymentDomain.PubEFT
	var id []byte
	err := querier.QueryRowContext(ctx, query, pubIndividualID).Scan(
		&id,
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

	if eft.ID, err = database.ParseMySQLUUID(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal pub eft id")
	}

	return &eft, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
