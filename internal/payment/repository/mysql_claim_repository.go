package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
)

// MySQLClaimRepository implements claim persistence for MySQL.
type MySQLClaimRepository struct {
	db *sql.DB
}

// NewMySQLClaimRepository creates a new MySQL claim repository.
func NewMySQLClaimRepository(db *sql.DB) *MySQLClaimRepository {
	return &MySQLClaimRepository{db: db}
}

// Create inserts a claim.
func (m *MySQLClaimRepository) Create(ctx context.Context, claim *paymentDomain.Claim) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO claims (` + claimColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(claim.ID),
		database.MySQLUUID(claim.EmployeeID),
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
func (m *MySQLClaimRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Claim, error) {
	return m.listWhere(ctx, "id", ids)
}

// ListByEmployeeIDs returns the claims of the given employees.
func (m *MySQLClaimRepository) ListByEmployeeIDs(
	ctx context.Context,
	employeeIDs []uuid.UUID,
) ([]*paymentDomain.Claim, error) {
	return m.listWhere(ctx, "employee_id", employeeIDs)
}

func (m *MySQLClaimRepository) listWhere(
	ctx context.Context,
	column string,
	ids []uuid.UUID,
) ([]*paymentDomain.Claim, error) {
	if len(ids) == 0 {
		return []*paymentDomain.Claim{}, nil
	}

	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + claimColumns + ` FROM claims
			  WHERE ` + column + ` IN (` + database.MySQLInList(len(ids)) + `)
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, database.MySQLUUIDArgs(ids)...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list claims")
	}
	defer func() {
		_ = rows.Close()
	}()

	claims := make([]*paymentDomain.Claim, 0)
	for rows.Next() {
		var claim paymentDomain.Claim
		var id, employeeID []byte
		var start, end sql.NullTime
		var decision sql.NullString
		if err := rows.Scan(&id, &employeeID, &claim.FineosAbsenceID, &start, &end, &decision, &claim.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claim")
		}
		if claim.ID, err = database.ParseMySQLUUID(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal claim id")
		}
		if claim.EmployeeID, err = database.ParseMySQLUUID(employeeID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal employee id")
		}
		claim.AbsencePeriodStartDate = nullTimePtr(start)
		claim.AbsencePeriodEndDate = nullTimePtr(end)
		claim.LeaveRequestDecision = decision.String
		claims = append(claims, &claim)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claims")
	}

	return claims, nil
}

// MySQLEmployeeRepository implements employee persistence for MySQL.
type MySQLEmployeeRepository struct {
	db *sql.DB
}

// NewMySQLEmployeeRepository creates a new MySQL employee repository.
func NewMySQLEmployeeRepository(db *sql.DB) *MySQLEmployeeRepository {
	return &MySQLEmployeeRepository{db: db}
}

// Create inserts an employee.
func (m *MySQLEmployeeRepository) Create(ctx context.Context, employee *paymentDomain.Employee) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO employees (id, fineos_customer_number, first_name, last_name, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(employee.ID),
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
func (m *MySQLEmployeeRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*paymentDomain.Employee, error) {
	if len(ids) == 0 {
		return []*paymentDomain.Employee{}, nil
	}

	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, fineos_customer_number, first_name, last_name, created_at
			  FROM employees WHERE id IN (` + database.MySQLInList(len(ids)) + `)`

	rows, err := querier.QueryContext(ctx, query, database.MySQLUUIDArgs(ids)...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list employees")
	}
	defer func() {
		_ = rows.Close()
	}()

	employees := make([]*paymentDomain.Employee, 0)
	for rows.Next() {
		var employee paymentDomain.Employee
		var id []byte
		if err := rows.Scan(
			&id,
			&employee.FineosCustomerNumber,
			&employee.FirstName,
			&employee.LastName,
			&employee.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan employee")
		}
		if employee.ID, err = database.ParseMySQLUUID(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal employee id")
		}
		employees = append(employees, &employee)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate employees")
	}

	return employees, nil
}
