package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// MySQLBatchRunRepository implements batch run persistence for MySQL.
type MySQLBatchRunRepository struct {
	db *sql.DB
}

// NewMySQLBatchRunRepository creates a new MySQL batch run repository.
func NewMySQLBatchRunRepository(db *sql.DB) *MySQLBatchRunRepository {
	return &MySQLBatchRunRepository{db: db}
}

// Create inserts a new batch run.
func (m *MySQLBatchRunRepository) Create(ctx context.Context, run *batchrunDomain.BatchRun) error {
	querier := database.GetTx(ctx, m.db)

	report, err := marshalReport(run.MetricsReport)
	if err != nil {
		return err
	}

	query := `INSERT INTO batch_runs (id, source, run_type, status, metrics_report, started_at, ended_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(run.ID),
		run.Source,
		run.RunType,
		string(run.Status),
		report,
		run.StartedAt,
		run.EndedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create batch run")
	}

	return nil
}

// Complete updates a run that has not been completed yet.
func (m *MySQLBatchRunRepository) Complete(ctx context.Context, run *batchrunDomain.BatchRun) error {
	querier := database.GetTx(ctx, m.db)

	report, err := marshalReport(run.MetricsReport)
	if err != nil {
		return err
	}

	query := `UPDATE batch_runs
			  SET status = ?, metrics_report = ?, ended_at = ?
			  WHERE id = ? AND ended_at IS NULL`

	result, err := querier.ExecContext(ctx, query, string(run.Status), report, run.EndedAt, database.MySQLUUID(run.ID))
	if err != nil {
		return apperrors.Wrap(err, "failed to complete batch run")
	}

	return checkCompleted(result)
}

// Get retrieves a batch run by id.
func (m *MySQLBatchRunRepository) Get(ctx context.Context, id uuid.UUID) (*batchrunDomain.BatchRun, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, source, run_type, status, metrics_report, started_at, ended_at
			  FROM batch_runs WHERE id = ?`

	run, err := scanMySQLBatchRun(querier.QueryRowContext(ctx, query, database.MySQLUUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, batchrunDomain.ErrBatchRunNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get batch run")
	}

	return run, nil
}

// ListByRunTypeSince returns runs of runType started at or after since, newest first.
func (m *MySQLBatchRunRepository) ListByRunTypeSince(
	ctx context.Context,
	runType string,
	since time.Time,
) ([]*batchrunDomain.BatchRun, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, source, run_type, status, metrics_report, started_at, ended_at
			  FROM batch_runs
			  WHERE run_type = ? AND started_at >= ?
			  ORDER BY started_at DESC`

	rows, err := querier.QueryContext(ctx, query, runType, since)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list batch runs")
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []*batchrunDomain.BatchRun
	for rows.Next() {
		run, err := scanMySQLBatchRun(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan batch run")
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate batch runs")
	}

	return runs, nil
}

func scanMySQLBatchRun(row rowScanner) (*batchrunDomain.BatchRun, error) {
	var run batchrunDomain.BatchRun
	var id []byte
	var status string
	var report []byte

	if err := row.Scan(&id, &run.Source, &run.RunType, &status, &report, &run.StartedAt, &run.EndedAt); err != nil {
		return nil, err
	}

	var err error
	if run.ID, err = database.ParseMySQLUUID(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal batch run id")
	}

	run.Status = batchrunDomain.Status(status)
	if run.MetricsReport, err = unmarshalReport(report); err != nil {
		return nil, err
	}

	return &run, nil
}
