package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

// maxPointerAttempts bounds the compare-and-swap on the latest pointer: one retry with
// a fresh read, then the conflict is surfaced as retryable.
const maxPointerAttempts = 2

// stateLogUseCase implements StateLogUseCase.
type stateLogUseCase struct {
	txManager database.TxManager
	repo      StateLogRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewStateLogUseCase creates a new StateLogUseCase with the provided dependencies.
func NewStateLogUseCase(
	txManager database.TxManager,
	repo StateLogRepository,
	logger *slog.Logger,
) StateLogUseCase {
	return &stateLogUseCase{
		txManager: txManager,
		repo:      repo,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordTransition validates the transition and writes it atomically.
func (s *stateLogUseCase) RecordTransition(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
	endState stateDomain.StateID,
	outcome map[string]any,
	batchRunID *uuid.UUID,
) (*stateDomain.StateLogEntry, error) {
	return s.transition(ctx, entity, flowID, endState, outcome, batchRunID, false)
}

// CreateFinishedTransition writes the transition unless the entity is already in a
// terminal state of the flow. Re-running a step over processed entities is expected.
func (s *stateLogUseCase) CreateFinishedTransition(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
	endState stateDomain.StateID,
	outcome map[string]any,
	batchRunID *uuid.UUID,
) (*stateDomain.StateLogEntry, error) {
	return s.transition(ctx, entity, flowID, endState, outcome, batchRunID, true)
}

func (s *stateLogUseCase) transition(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
	endState stateDomain.StateID,
	outcome map[string]any,
	batchRunID *uuid.UUID,
	guardTerminal bool,
) (*stateDomain.StateLogEntry, error) {
	if _, err := stateDomain.ValidateTransition(entity, flowID, endState); err != nil {
		return nil, err
	}

	var entry *stateDomain.StateLogEntry
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= maxPointerAttempts; attempt++ {
			var err error
			entry, err = s.writeTransition(ctx, entity, flowID, endState, outcome, batchRunID, guardTerminal)
			if err == nil {
				return nil
			}
			if !apperrors.Is(err, apperrors.ErrConflict) {
				return err
			}
			lastErr = err
			s.logger.Warn("latest state log pointer conflict",
				slog.String("entity", entity.String()),
				slog.Int("flow_id", int(flowID)),
				slog.Int("attempt", attempt),
			)
		}
		return apperrors.Wrap(apperrors.ErrRetryable, lastErr.Error())
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// writeTransition reads the current pointer under lock, moves it with a conditional
// upsert and appends the entry.
func (s *stateLogUseCase) writeTransition(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
	endState stateDomain.StateID,
	outcome map[string]any,
	batchRunID *uuid.UUID,
	guardTerminal bool,
) (*stateDomain.StateLogEntry, error) {
	current, err := s.repo.LockLatest(ctx, entity, flowID)
	if err != nil && !apperrors.Is(err, stateDomain.ErrStateLogNotFound) {
		return nil, apperrors.Wrap(err, "failed to read latest state log")
	}

	var startState *stateDomain.StateID
	var expected *uuid.UUID
	if current != nil {
		if guardTerminal {
			currentState, err := stateDomain.GetState(current.EndStateID)
			if err != nil {
				return nil, err
			}
			if currentState.Terminal {
				s.logger.Info("entity already in terminal state, skipping transition",
					slog.String("entity", entity.String()),
					slog.Int("current_state_id", int(current.EndStateID)),
					slog.Int("requested_state_id", int(endState)),
				)
				return current, nil
			}
		}
		start := current.EndStateID
		startState = &start
		expected = &current.ID
	}

	entry := &stateDomain.StateLogEntry{
		ID:           uuid.Must(uuid.NewV7()),
		Entity:       entity,
		FlowID:       flowID,
		StartStateID: startState,
		EndStateID:   endState,
		Outcome:      outcome,
		BatchRunID:   batchRunID,
		CreatedAt:    s.now(),
	}

	pointer := &stateDomain.LatestStateLogPointer{Entity: entity, FlowID: flowID, StateLogID: entry.ID}
	if err := s.repo.UpsertLatest(ctx, pointer, expected); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, apperrors.Wrap(err, "failed to create state log")
	}

	return entry, nil
}

// GetCurrentState returns the end state referenced by the latest pointer.
func (s *stateLogUseCase) GetCurrentState(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.State, error) {
	if _, err := stateDomain.ValidateFlowEntity(entity, flowID); err != nil {
		return nil, err
	}

	entry, err := s.repo.GetLatest(ctx, entity, flowID)
	if err != nil {
		if apperrors.Is(err, stateDomain.ErrStateLogNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "failed to get latest state log")
	}

	state, err := stateDomain.GetState(entry.EndStateID)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetCurrentStateMulti issues one query per entity kind.
func (s *stateLogUseCase) GetCurrentStateMulti(
	ctx context.Context,
	entities []stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (map[stateDomain.EntityRef]stateDomain.State, error) {
	idsByKind := make(map[stateDomain.EntityKind][]uuid.UUID)
	for _, entity := range entities {
		if _, err := stateDomain.ValidateFlowEntity(entity, flowID); err != nil {
			return nil, err
		}
		idsByKind[entity.Kind] = append(idsByKind[entity.Kind], entity.ID)
	}

	result := make(map[stateDomain.EntityRef]stateDomain.State, len(entities))
	for kind, ids := range idsByKind {
		stateIDs, err := s.repo.GetLatestStates(ctx, kind, ids, flowID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to get latest states")
		}
		for id, stateID := range stateIDs {
			state, err := stateDomain.GetState(stateID)
			if err != nil {
				return nil, err
			}
			result[stateDomain.EntityRef{Kind: kind, ID: id}] = state
		}
	}

	return result, nil
}

// CountByState counts current states from the pointer index, never from history.
func (s *stateLogUseCase) CountByState(
	ctx context.Context,
	flowID stateDomain.FlowID,
) (map[stateDomain.StateID]int64, error) {
	if _, err := stateDomain.GetFlow(flowID); err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByState(ctx, flowID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count states")
	}
	return counts, nil
}

// ListCurrentEntries returns the entries gating the next pipeline step.
func (s *stateLogUseCase) ListCurrentEntries(
	ctx context.Context,
	flowID stateDomain.FlowID,
	stateID stateDomain.StateID,
) ([]*stateDomain.StateLogEntry, error) {
	state, err := stateDomain.GetState(stateID)
	if err != nil {
		return nil, err
	}
	if state.FlowID != flowID {
		return nil, fmt.Errorf("%w: state %d in flow %d", stateDomain.ErrStateNotInFlow, stateID, flowID)
	}

	entries, err := s.repo.ListCurrentByState(ctx, flowID, stateID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list current state logs")
	}
	return entries, nil
}
