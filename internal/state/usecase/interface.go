// Package usecase implements the state log store: every transition is appended to the
// history and the latest pointer is moved in the same transaction.
package usecase

import (
	"context"

	"github.com/google/uuid"

	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

// StateLogRepository defines persistence operations for state log entries and pointers.
// Implementations must support transaction-aware operations via context propagation.
type StateLogRepository interface {
	// Create appends a new entry to the history.
	Create(ctx context.Context, entry *stateDomain.StateLogEntry) error

	// GetLatest returns the entry referenced by the latest pointer.
	// Returns ErrStateLogNotFound when no pointer exists.
	GetLatest(ctx context.Context, entity stateDomain.EntityRef, flowID stateDomain.FlowID) (*stateDomain.StateLogEntry, error)

	// LockLatest is GetLatest with a row lock on the pointer for the rest of the transaction.
	LockLatest(ctx context.Context, entity stateDomain.EntityRef, flowID stateDomain.FlowID) (*stateDomain.StateLogEntry, error)

	// UpsertLatest inserts or moves the pointer in a single statement. The pointer is
	// only moved when it still references expected (nil meaning "no pointer yet");
	// otherwise ErrPointerMoved is returned and nothing is written.
	UpsertLatest(ctx context.Context, pointer *stateDomain.LatestStateLogPointer, expected *uuid.UUID) error

	// GetLatestStates returns the current end state per entity id for one kind in one query.
	GetLatestStates(
		ctx context.Context,
		kind stateDomain.EntityKind,
		ids []uuid.UUID,
		flowID stateDomain.FlowID,
	) (map[uuid.UUID]stateDomain.StateID, error)

	// CountByState counts latest pointers of the flow grouped by end state.
	CountByState(ctx context.Context, flowID stateDomain.FlowID) (map[stateDomain.StateID]int64, error)

	// ListCurrentByState returns the latest entries of the flow whose end state is stateID.
	ListCurrentByState(
		ctx context.Context,
		flowID stateDomain.FlowID,
		stateID stateDomain.StateID,
	) ([]*stateDomain.StateLogEntry, error)
}

// StateLogUseCase records transitions and answers "current state of X in flow Y".
type StateLogUseCase interface {
	// RecordTransition appends an entry whose start state is the current state and moves
	// the latest pointer to it. Joins the transaction carried by ctx when present.
	RecordTransition(
		ctx context.Context,
		entity stateDomain.EntityRef,
		flowID stateDomain.FlowID,
		endState stateDomain.StateID,
		outcome map[string]any,
		batchRunID *uuid.UUID,
	) (*stateDomain.StateLogEntry, error)

	// CreateFinishedTransition is RecordTransition guarded against entities already in a
	// terminal state of the flow: the existing latest entry is returned and nothing is written.
	CreateFinishedTransition(
		ctx context.Context,
		entity stateDomain.EntityRef,
		flowID stateDomain.FlowID,
		endState stateDomain.StateID,
		outcome map[string]any,
		batchRunID *uuid.UUID,
	) (*stateDomain.StateLogEntry, error)

	// GetCurrentState returns the current state or nil when the entity has none in the flow.
	GetCurrentState(
		ctx context.Context,
		entity stateDomain.EntityRef,
		flowID stateDomain.FlowID,
	) (*stateDomain.State, error)

	// GetCurrentStateMulti returns the current state of every entity that has one.
	GetCurrentStateMulti(
		ctx context.Context,
		entities []stateDomain.EntityRef,
		flowID stateDomain.FlowID,
	) (map[stateDomain.EntityRef]stateDomain.State, error)

	// CountByState counts entities of the flow per current state.
	CountByState(ctx context.Context, flowID stateDomain.FlowID) (map[stateDomain.StateID]int64, error)

	// ListCurrentEntries returns the latest entries of entities currently in stateID.
	ListCurrentEntries(
		ctx context.Context,
		flowID stateDomain.FlowID,
		stateID stateDomain.StateID,
	) ([]*stateDomain.StateLogEntry, error)
}
