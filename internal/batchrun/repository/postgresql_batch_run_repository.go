// Package repository provides batch run persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// PostgreSQLBatchRunRepository implements batch run persistence for PostgreSQL.
type PostgreSQLBatchRunRepository struct {
	db *sql.DB
}

// NewPostgreSQLBatchRunRepository creates a new PostgreSQL batch run repository.
func NewPostgreSQLBatchRunRepository(db *sql.DB) *PostgreSQLBatchRunRepository {
	return &PostgreSQLBatchRunRepository{db: db}
}

// Create inserts a new batch run.
func (p *PostgreSQLBatchRunRepository) Create(ctx context.Context, run *batchrunDomain.BatchRun) error {
	querier := database.GetTx(ctx, p.db)

	report, err := marshalReport(run.MetricsReport)
	if err != nil {
		return err
	}

	query := `INSERT INTO batch_runs (id, source, run_type, status, metrics_report, started_at, ended_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = querier.ExecContext(
		ctx,
		query,
		run.ID,
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
func (p *PostgreSQLBatchRunRepository) Complete(ctx context.Context, run *batchrunDomain.BatchRun) error {
	querier := database.GetTx(ctx, p.db)

	report, err := marshalReport(run.MetricsReport)
	if err != nil {
		return err
	}

	query := `UPDATE batch_runs
			  SET status = $1, metrics_report = $2, ended_at = $3
			  WHERE id = $4 AND ended_at IS NULL`

	result, err := querier.ExecContext(ctx, query, string(run.Status), report, run.EndedAt, run.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to complete batch run")
	}

	return checkCompleted(result)
}

// Get retrieves a batch run by id.
func (p *PostgreSQLBatchRunRepository) Get(ctx context.Context, id uuid.UUID) (*batchrunDomain.BatchRun, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, source, run_type, status, metrics_report, started_at, ended_at
			  FROM batch_runs WHERE id = $1`

	run, err := scanPostgresBatchRun(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, batchrunDomain.ErrBatchRunNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get batch run")
	}

	return run, nil
}

// ListByRunTypeSince returns runs of runType started at or after since, newest first.
func (p *PostgreSQLBatchRunRepository) ListByRunTypeSince(
	ctx context.Context,
	runType string,
	since time.Time,
) ([]*batchrunDomain.BatchRun, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, source, run_type, status, metrics_report, started_at, ended_at
			  FROM batch_runs
			  WHERE run_type = $1 AND started_at >= $2
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
		run, err := scanPostgresBatchRun(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresBatchRun(row rowScanner) (*batchrunDomain.BatchRun, error) {
	var run batchrunDomain.BatchRun
	var status string
	var report []byte

	if err := row.Scan(&run.ID, &run.Source, &run.RunType, &status, &report, &run.StartedAt, &run.EndedAt); err != nil {
		return nil, err
	}

	run.Status = batchrunDomain.Status(status)
	metrics, err := unmarshalReport(report)
	if err != nil {
		return nil, err
	}
	run.MetricsReport = metrics

	return &run, nil
}

func marshalReport(report map[string]int64) (string, error) {
	if report == nil {
		report = map[string]int64{}
	}
	b, err := json.Marshal(report)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal metrics report")
	}
	return string(b), nil
}

func unmarshalReport(b []byte) (map[string]int64, error) {
	report := map[string]int64{}
	if len(b) == 0 {
		return report, nil
	}
	if err := json.Unmarshal(b, &report); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal metrics report")
	}
	return report, nil
}

func checkCompleted(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return batchrunDomain.ErrBatchRunAlreadyCompleted
	}
	return nil
}
