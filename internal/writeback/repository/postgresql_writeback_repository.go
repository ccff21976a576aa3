// Package repository provides writeback row persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// PostgreSQLWritebackRepository implements writeback persistence for PostgreSQL.
type PostgreSQLWritebackRepository struct {
	db *sql.DB
}

// NewPostgreSQLWritebackRepository creates a new PostgreSQL writeback repository.
func NewPostgreSQLWritebackRepository(db *sql.DB) *PostgreSQLWritebackRepository {
	return &PostgreSQLWritebackRepository{db: db}
}

// Create inserts an unsent row.
func (p *PostgreSQLWritebackRepository) Create(ctx context.Context, detail *writebackDomain.WritebackDetail) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO writeback_details (id, payment_id, transaction_status, batch_run_id, sent_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		detail.ID,
		detail.PaymentID,
		string(detail.TransactionStatus),
		detail.BatchRunID,
		detail.SentAt,
		detail.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create writeback detail")
	}

	return nil
}

// ClaimUnsent locks unsent rows oldest first. Rows locked by a concurrent
// transmission are skipped.
func (p *PostgreSQLWritebackRepository) ClaimUnsent(
	ctx context.Context,
	limit int,
) ([]*writebackDomain.WritebackDetail, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, payment_id, transaction_status, batch_run_id, sent_at, created_at
			  FROM writeback_details
			  WHERE sent_at IS NULL
			  ORDER BY created_at ASC, id ASC
			  LIMIT $1
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim unsent writeback details")
	}
	defer func() {
		_ = rows.Close()
	}()

	details := make([]*writebackDomain.WritebackDetail, 0)
	for rows.Next() {
		var detail writebackDomain.WritebackDetail
		var status string
		var sentAt sql.NullTime
		if err := rows.Scan(
			&detail.ID,
			&detail.PaymentID,
			&status,
			&detail.BatchRunID,
			&sentAt,
			&detail.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan writeback detail")
		}
		detail.TransactionStatus = writebackDomain.TransactionStatus(status)
		if sentAt.Valid {
			detail.SentAt = &sentAt.Time
		}
		details = append(details, &detail)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate writeback details")
	}

	return details, nil
}

// MarkSent stamps rows that are still unsent.
func (p *PostgreSQLWritebackRepository) MarkSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	querier := database.GetTx(ctx, p.db)

	query := `UPDATE writeback_details SET sent_at = $1
			  WHERE id = ANY($2::uuid[]) AND sent_at IS NULL`

	result, err := querier.ExecContext(ctx, query, sentAt, pq.Array(database.UUIDStrings(ids)))
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to mark writeback details sent")
	}

	return result.RowsAffected()
}

// CreateAttempt inserts a failed transmission attempt.
func (p *PostgreSQLWritebackRepository) CreateAttempt(
	ctx context.Context,
	attempt *writebackDomain.WritebackAttempt,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO writeback_attempts (id, batch_run_id, row_count, error_message, attempted_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		attempt.ID,
		attempt.BatchRunID,
		attempt.RowCount,
		attempt.ErrorMessage,
		attempt.AttemptedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create writeback attempt")
	}

	return nil
}
