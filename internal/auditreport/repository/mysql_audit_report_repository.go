package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// MySQLAuditReportRepository implements audit report persistence for MySQL.
type MySQLAuditReportRepository struct {
	db *sql.DB
}

// NewMySQLAuditReportRepository creates a new MySQL audit report repository.
func NewMySQLAuditReportRepository(db *sql.DB) *MySQLAuditReportRepository {
	return &MySQLAuditReportRepository{db: db}
}

// Create appends a detail.
func (m *MySQLAuditReportRepository) Create(ctx context.Context, detail *auditDomain.AuditReportDetail) error {
	querier := database.GetTx(ctx, m.db)

	message, err := marshalMessage(detail.Message)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_report_details (id, payment_id, reason_code, message, batch_run_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(detail.ID),
		database.MySQLUUID(detail.PaymentID),
		string(detail.ReasonCode),
		message,
		database.MySQLNullUUID(detail.BatchRunID),
		detail.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit report detail")
	}

	return nil
}

// ListByBatchRun returns a run's details with the given reason codes, oldest first.
func (m *MySQLAuditReportRepository) ListByBatchRun(
	ctx context.Context,
	batchRunID uuid.UUID,
	codes []auditDomain.ReasonCode,
) ([]*auditDomain.AuditReportDetail, error) {
	if len(codes) == 0 {
		return []*auditDomain.AuditReportDetail{}, nil
	}

	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, payment_id, reason_code, message, batch_run_id, created_at
			  FROM audit_report_details
			  WHERE batch_run_id = ? AND reason_code IN (` + database.MySQLInList(len(codes)) + `)
			  ORDER BY created_at ASC, id ASC`

	args := []any{database.MySQLUUID(batchRunID)}
	for _, code := range reasonStrings(codes) {
		args = append(args, code)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit report details")
	}
	defer func() {
		_ = rows.Close()
	}()

	details := make([]*auditDomain.AuditReportDetail, 0)
	for rows.Next() {
		var detail auditDomain.AuditReportDetail
		var id, paymentID, runID, message []byte
		var reasonCode string
		if err := rows.Scan(&id, &paymentID, &reasonCode, &message, &runID, &detail.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit report detail")
		}
		if detail.ID, err = database.ParseMySQLUUID(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit report detail id")
		}
		if detail.PaymentID, err = database.ParseMySQLUUID(paymentID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal payment id")
		}
		if detail.BatchRunID, err = database.ParseMySQLNullUUID(runID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal batch run id")
		}
		detail.ReasonCode = auditDomain.ReasonCode(reasonCode)
		if detail.Message, err = unmarshalMessage(message); err != nil {
			return nil, err
		}
		details = append(details, &detail)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit report details")
	}

	return details, nil
}
