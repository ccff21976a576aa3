package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
)

const claimColumns = `id, employee_id, fineos_absence_id, absence_period_start_date,
			  absence_period_end_date, leave_request_decision, created_at`

// PostgreSQLClaimRepository implements claim persistence for PostgreSQL.
type PostgreSQLClaimRepository struct {
	db *sql.DB
}

// NewPostgreSQLClaimRepository creates a new PostgreSQL claim repository.
func NewPostgreSQLClaimRepository(db *sql.DB) *PostgreSQLClaimRepository {
	return &PostgreSQLClaimRepository{db: db}
}

// Create inserts a claim.
func (p *PostgreSQLClaimRepository) Create(ctx context.Context, claim *paymentDomain.Claim) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO claims (` + claimColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		claim.ID,
		claim.EmployeeID,
		claim.FineosAbsenceID,
		claim.AbsencePeriodStartDate,
		claim.AbsencePeriodEndDate,
		nullString(claim.LeaveRequestDecision),
		claim.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create claim")
	}

	return nil
}

// GetByIDs returns the claims with the given ids. Missing ids are skipped.
func (p *PostgreSQLClaimRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Claim, error) {
	return p.listWhere(ctx, "id", ids)
}

// ListByEmployeeIDs returns the claims of the given employees.
func (p *PostgreSQLClaimRepository) ListByEmployeeIDs(
	ctx context.Context,
	employeeIDs []uuid.UUID,
) ([]*paymentDomain.Claim, error) {
	return p.listWhere(ctx, "employee_id", employeeIDs)
}

func (p *PostgreSQLClaimRepository) listWhere(
	ctx context.Context,
	column string,
	ids []uuid.UUID,
) ([]*paymentDomain.Claim, error) {
	if len(ids) == 0 {
		return []*paymentDomain.Claim{}, nil
	}

	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + claimColumns + ` FROM claims
			  WHERE ` + column + ` = ANY($1::uuid[])
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, pq.Array(database.UUIDStrings(ids)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list claims")
	}
	defer func() {
		_ = rows.Close()
	}()

	claims := make([]*paymentDomain.Claim, 0)
	for rows.Next() {
		var claim paymentDomain.Claim
		var decision sql.NullString
		if err := rows.Scan(
			&claim.ID,
			&claim.EmployeeID,
			&claim.FineosAbsenceID,
			&claim.AbsencePeriodStartDate,
			&claim.AbsencePeriodEndDate,
			&decision,
			&claim.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claim")
		}
		claim.LeaveRequestDecision = decision.String
		claims = append(claims, &claim)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claims")
	}

	return claims, nil
}

// PostgreSQLEmployeeRepository implements employee persistence for PostgreSQL.
type PostgreSQLEmployeeRepository struct {
	db *sql.DB
}

// NewPostgreSQLEmployeeRepository creates a new PostgreSQL employee repository.
func NewPostgreSQLEmployeeRepository(db *sql.DB) *PostgreSQLEmployeeRepository {
	return &PostgreSQLEmployeeRepository{db: db}
}

// Create inserts an employee.
func (p *PostgreSQLEmployeeRepository) Create(ctx context.Context, employee *paymentDomain.Employee) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO employees (id, fineos_customer_number, first_name, last_name, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		employee.ID,
		employee.FineosCustomerNumber,
		employee.FirstName,
		employee.LastName,
		employee.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create employee")
	}

	return nil
}

// GetByIDs returns the employees with the given ids. Missing ids are skipped.
func (p *PostgreSQLEmployeeRepository) GetByIDs(
	ctx context.Context,
	ids []uuid.UUID,
) ([]*paymentDomain.Employee, error) {
	if len(ids) == 0 {
		return []*paymentDomain.Employee{}, nil
	}

	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, fineos_customer_number, first_name, last_name, created_at
			  FROM employees WHERE id = ANY($1::uuid[])`

	rows, err := querier.QueryContext(ctx, query, pq.Array(database.UUIDStrings(ids)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list employees")
	}
	defer func() {
		_ = rows.Close()
	}()

	employees := make([]*paymentDomain.Employee, 0)
	for rows.Next() {
		var employee paymentDomain.Employee
		if err := rows.Scan(
			&employee.ID,
			&employee.FineosCustomerNumber,
			&employee.FirstName,
			&employee.LastName,
			&employee.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan employee")
		}
		employees = append(employees, &employee)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate employees")
	}

	return employees, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
