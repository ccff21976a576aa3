package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

const mysqlStateLogColumns = `sl.id, sl.associated_kind, sl.associated_id, sl.flow_id, sl.start_state_id,
			  sl.end_state_id, sl.outcome, sl.batch_run_id, sl.created_at`

// MySQLStateLogRepository implements state log persistence for MySQL.
type MySQLStateLogRepository struct {
	db *sql.DB
}

// NewMySQLStateLogRepository creates a new MySQL state log repository.
func NewMySQLStateLogRepository(db *sql.DB) *MySQLStateLogRepository {
	return &MySQLStateLogRepository{db: db}
}

// Create appends a new entry to state_logs.
func (m *MySQLStateLogRepository) Create(ctx context.Context, entry *stateDomain.StateLogEntry) error {
	querier := database.GetTx(ctx, m.db)

	outcome, err := marshalOutcome(entry.Outcome)
	if err != nil {
		return err
	}

	query := `INSERT INTO state_logs (id, associated_kind, associated_id, flow_id, start_state_id,
			  end_state_id, outcome, batch_run_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		database.MySQLUUID(entry.ID),
		string(entry.Entity.Kind),
		database.MySQLUUID(entry.Entity.ID),
		int(entry.FlowID),
		nullStateID(entry.StartStateID),
		int(entry.EndStateID),
		outcome,
		database.MySQLNullUUID(entry.BatchRunID),
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create state log")
	}

	return nil
}

// GetLatest returns the entry the pointer references.
func (m *MySQLStateLogRepository) GetLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.StateLogEntry, error) {
	return m.getLatest(ctx, entity, flowID, "")
}

// LockLatest returns the entry the pointer references and locks the pointer row.
func (m *MySQLStateLogRepository) LockLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.StateLogEntry, error) {
	return m.getLatest(ctx, entity, flowID, " FOR UPDATE")
}

func (m *MySQLStateLogRepository) getLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
	lockClause string,
) (*stateDomain.StateLogEntry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlStateLogColumns + `
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.associated_kind = ? AND lsl.associated_id = ? AND lsl.flow_id = ?` + lockClause

	row := querier.QueryRowContext(ctx, query, string(entity.Kind), database.MySQLUUID(entity.ID), int(flowID))
	entry, err := scanMySQLStateLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stateDomain.ErrStateLogNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get latest state log")
	}

	return entry, nil
}

// UpsertLatest moves the pointer only when it still references expected. With the
// driver's default affected-rows semantics an unchanged row reports zero.
func (m *MySQLStateLogRepository) UpsertLatest(
	ctx context.Context,
	pointer *stateDomain.LatestStateLogPointer,
	expected *uuid.UUID,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO latest_state_logs (associated_kind, associated_id, flow_id, state_log_id)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE state_log_id = IF(state_log_id <=> ?, VALUES(state_log_id), state_log_id)`

	result, err := querier.ExecContext(
		ctx,
		query,
		string(pointer.Entity.Kind),
		database.MySQLUUID(pointer.Entity.ID),
		int(pointer.FlowID),
		database.MySQLUUID(pointer.StateLogID),
		database.MySQLNullUUID(expected),
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
func (m *MySQLStateLogRepository) GetLatestStates(
	ctx context.Context,
	kind stateDomain.EntityKind,
	ids []uuid.UUID,
	flowID stateDomain.FlowID,
) (map[uuid.UUID]stateDomain.StateID, error) {
	result := make(map[uuid.UUID]stateDomain.StateID, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	querier := database.GetTx(ctx, m.db)

	query := `SELECT lsl.associated_id, sl.end_state_id
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.associated_kind = ? AND lsl.flow_id = ? AND lsl.associated_id IN (` +
		database.MySQLInList(len(ids)) + `)`

	args := append([]any{string(kind), int(flowID)}, database.MySQLUUIDArgs(ids)...)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get latest states")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var rawID []byte
		var stateID int
		if err := rows.Scan(&rawID, &stateID); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan latest state")
		}
		id, err := database.ParseMySQLUUID(rawID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal associated id")
		}
		result[id] = stateDomain.StateID(stateID)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate latest states")
	}

	return result, nil
}

// CountByState groups pointers of the flow by end state.
func (m *MySQLStateLogRepository) CountByState(
	ctx context.Context,
	flowID stateDomain.FlowID,
) (map[stateDomain.StateID]int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT sl.end_state_id, COUNT(*)
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.flow_id = ?
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
func (m *MySQLStateLogRepository) ListCurrentByState(
	ctx context.Context,
	flowID stateDomain.FlowID,
	stateID stateDomain.StateID,
) ([]*stateDomain.StateLogEntry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlStateLogColumns + `
			  FROM latest_state_logs lsl
			  JOIN state_logs sl ON sl.id = lsl.state_log_id
			  WHERE lsl.flow_id = ? AND sl.end_state_id = ?
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
		entry, err := scanMySQLStateLog(rows)
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

func scanMySQLStateLog(row rowScanner) (*stateDomain.StateLogEntry, error) {
	var entry stateDomain.StateLogEntry
	var id, associatedID, batchRunID []byte
	var kind string
	var flowID, endStateID int
	var startStateID sql.NullInt64
	var outcome []byte

	err := row.Scan(
		&id,
		&kind,
		&associatedID,
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

	if entry.ID, err = database.ParseMySQLUUID(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal state log id")
	}
	if entry.Entity.ID, err = database.ParseMySQLUUID(associatedID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal associated id")
	}
	if entry.BatchRunID, err = database.ParseMySQLNullUUID(batchRunID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal batch run id")
	}

	entry.Entity.Kind = stateDomain.EntityKind(kind)
	entry.FlowID = stateDomain.FlowID(flowID)
	entry.EndStateID = stateDomain.StateID(endStateID)
	if startStateID.Valid {
		start := stateDomain.StateID(startStateID.Int64)
		entry.StartStateID = &start
	}
	if entry.Outcome, err = unmarshalOutcome(outcome); err != nil {
		return nil, err
	}

	return &entry, nil
}
