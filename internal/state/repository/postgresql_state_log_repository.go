// Package repository provides state log persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

const postgresStateLogColumns = `sl.id, sl.associated_kind, sl.associated_id, sl.flow_id, sl.start_state_id,
			  sl.end_state_id, sl.outcome, sl.batch_run_id, sl.created_at`

// PostgreSQLStateLogRepository implements state log persistence for PostgreSQL.
type PostgreSQLStateLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLStateLogRepository creates a new PostgreSQL state log repository.
func NewPostgreSQLStateLogRepository(db *sql.DB) *PostgreSQLStateLogRepository {
	return &PostgreSQLStateLogRepository{db: db}
}

// Create appends a new entry to state_logs.
func (p *PostgreSQLStateLogRepository) Create(ctx context.Context, entry *stateDomain.StateLogEntry) error {
	querier := database.GetTx(ctx, p.db)

	outcome, err := marshalOutcome(entry.Outcome)
	if err != nil {
		return err
	}

	query := `INSERT INTO state_logs (id, associated_kind, associated_id, flow_id, start_state_id,
			  end_state_id, outcome, batch_run_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = querier.ExecContext(
		ctx,
		query,
		entry.ID,
		string(entry.Entity.Kind),
		entry.Entity.ID,
		int(entry.FlowID),
		nullStateID(entry.StartStateID),
		int(entry.EndStateID),
		outcome,
		entry.BatchRunID,
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create state log")
	}

	return nil
}

// GetLatest returns the entry the pointer references.
func (p *PostgreSQLStateLogRepository) GetLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.StateLogEntry, error) {
	return p.getLatest(ctx, entity, flowID, "")
}

// LockLatest returns the entry the pointer references and locks the pointer row.
func (p *PostgreSQLStateLogRepository) LockLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.StateLogEntry, error) {
	return p.getLatest(ctx, entity, flowID, " FOR UPDATE OF lsl")
}

func (p *PostgreSQLStateLogRepository) getLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
	lockClause string,
) (*stateDomain.StateLogEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresStateLogColumns + `
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.associated_kind = $1 AND lsl.associated_id = $2 AND lsl.flow_id = $3` + lockClause

	entry, err := scanPostgresStateLog(querier.QueryRowContext(ctx, query, string(entity.Kind), entity.ID, int(flowID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stateDomain.ErrStateLogNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get latest state log")
	}

	return entry, nil
}

// UpsertLatest moves the pointer only when it still references expected.
func (p *PostgreSQLStateLogRepository) UpsertLatest(
	ctx context.Context,
	pointer *stateDomain.LatestStateLogPointer,
	expected *uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO latest_state_logs (associated_kind, associated_id, flow_id, state_log_id)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (associated_kind, associated_id, flow_id)
			  DO UPDATE SET state_log_id = EXCLUDED.state_log_id
			  WHERE latest_state_logs.state_log_id IS NOT DISTINCT FROM $5::uuid`

	result, err := querier.ExecContext(
		ctx,
		query,
		string(pointer.Entity.Kind),
		pointer.Entity.ID,
		int(pointer.FlowID),
		pointer.StateLogID,
		expected,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert latest state log")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return stateDomain.ErrPointerMoved
	}

	return nil
}

// GetLatestStates returns the current end state of each id that has a pointer.
func (p *PostgreSQLStateLogRepository) GetLatestStates(
	ctx context.Context,
	kind stateDomain.EntityKind,
	ids []uuid.UUID,
	flowID stateDomain.FlowID,
) (map[uuid.UUID]stateDomain.StateID, error) {
	result := make(map[uuid.UUID]stateDomain.StateID, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	querier := database.GetTx(ctx, p.db)

	query := `SELECT lsl.associated_id, sl.end_state_id
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.associated_kind = $1 AND lsl.flow_id = $2 AND lsl.associated_id = ANY($3::uuid[])`

	rows, err := querier.QueryContext(ctx, query, string(kind), int(flowID), pq.Array(database.UUIDStrings(ids)))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get latest states")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var id uuid.UUID
		var stateID int
		if err := rows.Scan(&id, &stateID); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan latest state")
		}
		result[id] = stateDomain.StateID(stateID)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate latest states")
	}

	return result, nil
}

// CountByState groups pointers of the flow by end state.
func (p *PostgreSQLStateLogRepository) CountByState(
	ctx context.Context,
	flowID stateDomain.FlowID,
) (map[stateDomain.StateID]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT sl.end_state_id, COUNT(*)
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.flow_id = $1
			  GROUP BY sl.end_state_id`

	rows, err := querier.QueryContext(ctx, query, int(flowID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count states")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanStateCounts(rows)
}

// ListCurrentByState returns the latest entries of the flow ending in stateID.
func (p *PostgreSQLStateLogRepository) ListCurrentByState(
	ctx context.Context,
	flowID stateDomain.FlowID,
	stateID stateDomain.StateID,
) ([]*stateDomain.StateLogEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresStateLogColumns + `
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.flow_id = $1 AND sl.end_state_id = $2
			  ORDER BY sl.created_at ASC, sl.id ASC`

	rows, err := querier.QueryContext(ctx, query, int(flowID), int(stateID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list current state logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*stateDomain.StateLogEntry
	for rows.Next() {
		entry, err := scanPostgresStateLog(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan state log")
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate state logs")
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresStateLog(row rowScanner) (*stateDomain.StateLogEntry, error) {
	var entry stateDomain.StateLogEntry
	var kind string
	var flowID, endStateID int
	var startStateID sql.NullInt64
	var outcome []byte
	var batchRunID uuid.NullUUID

	err := row.Scan(
		&entry.ID,
		&kind,
		&entry.Entity.ID,
		&flowID,
		&startStateID,
		&endStateID,
		&outcome,
		&batchRunID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Entity.Kind = stateDomain.EntityKind(kind)
	entry.FlowID = stateDomain.FlowID(flowID)
	entry.EndStateID = stateDomain.StateID(endStateID)
	if startStateID.Valid {
		start := stateDomain.StateID(startStateID.Int64)
		entry.StartStateID = &start
	}
	if batchRunID.Valid {
		entry.BatchRunID = &batchRunID.UUID
	}
	if entry.Outcome, err = unmarshalOutcome(outcome); err != nil {
		return nil, err
	}

	return &entry, nil
}

func scanStateCounts(rows *sql.Rows) (map[stateDomain.StateID]int64, error) {
	counts := make(map[stateDomain.StateID]int64)
	for rows.Next() {
		var stateID int
		var count int64
		if err := rows.Scan(&stateID, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan state count")
		}
		counts[stateDomain.StateID(stateID)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate state counts")
	}

	return counts, nil
}

// marshalOutcome returns the JSON text of outcome, or nil for an empty outcome.
func marshalOutcome(outcome map[string]any) (any, error) {
	if len(outcome) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(outcome)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal outcome")
	}
	return string(b), nil
}

func unmarshalOutcome(b []byte) (map[string]any, error) {
	if len(b) == 0 || strings.TrimSpace(string(b)) == "null" {
		return nil, nil
	}
	var outcome map[string]any
	if err := json.Unmarshal(b, &outcome); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal outcome")
	}
	return outcome, nil
}

func nullStateID(id *stateDomain.StateID) any {
	if id == nil {
		return nil
	}
	return int(*id)
}
