package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// MySQLWritebackRepository implements writeback persistence for MySQL 8.
type MySQLWritebackRepository struct {
	db *sql.DB
}

// NewMySQLWritebackRepository creates a new MySQL writeback repository.
func NewMySQLWritebackRepository(db *sql.DB) *MySQLWritebackRepository {
	return &MySQLWritebackRepository{db: db}
}

// Create inserts an unsent row.
func (m *MySQLWritebackRepository) Create(ctx context.Context, detail *writebackDomain.WritebackDetail) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO writeback_details (id, payment_id, transaction_status, batch_run_id, sent_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(detail.ID),
		database.MySQLUUID(detail.PaymentID),
		string(detail.TransactionStatus),
		database.MySQLNullUUID(detail.BatchRunID),
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
func (m *MySQLWritebackRepository) ClaimUnsent(
	ctx context.Context,
	limit int,
) ([]*writebackDomain.WritebackDetail, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, payment_id, transaction_status, batch_run_id, sent_at, created_at
			  FROM writeback_details
			  WHERE sent_at IS NULL
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?
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
		var id, paymentID, batchRunID []byte
		var status string
		var sentAt sql.NullTime
		if err := rows.Scan(&id, &paymentID, &status, &batchRunID, &sentAt, &detail.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan writeback detail")
		}
		if detail.ID, err = database.ParseMySQLUUID(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse writeback detail id")
		}
		if detail.PaymentID, err = database.ParseMySQLUUID(paymentID); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse writeback payment id")
		}
		if detail.BatchRunID, err = database.ParseMySQLNullUUID(batchRunID); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse writeback batch run id")
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
func (m *MySQLWritebackRepository) MarkSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	querier := database.GetTx(ctx, m.db)

	query := `UPDATE writeback_details SET sent_at = ?
			  WHERE id IN (` + database.MySQLInList(len(ids)) + `) AND sent_at IS NULL`

	args := append([]any{sentAt}, database.MySQLUUIDArgs(ids)...)
	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to mark writeback details sent")
	}

	return result.RowsAffected()
}

// CreateAttempt inserts a failed transmission attempt.
func (m *MySQLWritebackRepository) CreateAttempt(
	ctx context.Context,
	attempt *writebackDomain.WritebackAttempt,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO writeback_attempts (id, batch_run_id, row_count, error_message, attempted_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(attempt.ID),
		database.MySQLNullUUID(attempt.BatchRunID),
		attempt.RowCount,
		attempt.ErrorMessage,
		attempt.AttemptedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create writeback attempt")
	}

	return nil
}
