// Package repository provides audit report detail persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// PostgreSQLAuditReportRepository implements audit report persistence for PostgreSQL.
type PostgreSQLAuditReportRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditReportRepository creates a new PostgreSQL audit report repository.
func NewPostgreSQLAuditReportRepository(db *sql.DB) *PostgreSQLAuditReportRepository {
	return &PostgreSQLAuditReportRepository{db: db}
}

// Create appends a detail.
func (p *PostgreSQLAuditReportRepository) Create(ctx context.Context, detail *auditDomain.AuditReportDetail) error {
	querier := database.GetTx(ctx, p.db)

	message, err := marshalMessage(detail.Message)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_report_details (id, payment_id, reason_code, message, batch_run_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = querier.ExecContext(
		ctx,
		query,
		detail.ID,
		detail.PaymentID,
		string(detail.ReasonCode),
		message,
		detail.BatchRunID,
		detail.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit report detail")
	}

	return nil
}

// ListByBatchRun returns a run's details with the given reason codes, oldest first.
func (p *PostgreSQLAuditReportRepository) ListByBatchRun(
	ctx context.Context,
	batchRunID uuid.UUID,
	codes []auditDomain.ReasonCode,
) ([]*auditDomain.AuditReportDetail, error) {
	if len(codes) == 0 {
		return []*auditDomain.AuditReportDetail{}, nil
	}

	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, payment_id, reason_code, message, batch_run_id, created_at
			  FROM audit_report_details
			  WHERE batch_run_id = $1 AND reason_code = ANY($2::text[])
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, batchRunID, pq.Array(reasonStrings(codes)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit report details")
	}
	defer func() {
		_ = rows.Close()
	}()

	details := make([]*auditDomain.AuditReportDetail, 0)
	for rows.Next() {
		var detail auditDomain.AuditReportDetail
		var reasonCode string
		var message []byte
		if err := rows.Scan(
			&detail.ID,
			&detail.PaymentID,
			&reasonCode,
			&message,
			&detail.BatchRunID,
			&detail.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit report detail")
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

func marshalMessage(message map[string]any) (string, error) {
	if message == nil {
		return "{}", nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal audit report message")
	}
	return string(data), nil
}

func unmarshalMessage(data []byte) (map[string]any, error) {
	message := map[string]any{}
	if len(data) == 0 {
		return message, nil
	}
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit report message")
	}
	return message, nil
}

func reasonStrings(codes []auditDomain.ReasonCode) []string {
	result := make([]string, len(codes))
	for i, code := range codes {
		result[i] = string(code)
	}
	return result
}
