package domain

import (
	apperrors "github.com/allisson/paidleave/internal/errors"
)

// State model errors. Invariant violations are programmer errors and abort the job.
var (
	// ErrUnknownFlow indicates a flow id that is not part of the reference data.
	ErrUnknownFlow = apperrors.Wrap(apperrors.ErrInvariantViolation, "unknown flow")

	// ErrUnknownState indicates a state id that is not part of the reference data.
	ErrUnknownState = apperrors.Wrap(apperrors.ErrInvariantViolation, "unknown state")

	// ErrStateNotInFlow indicates an end state that belongs to a different flow.
	ErrStateNotInFlow = apperrors.Wrap(apperrors.ErrInvariantViolation, "state does not belong to flow")

	// ErrUnsupportedEntityKind indicates an entity reference of an unsupported kind.
	ErrUnsupportedEntityKind = apperrors.Wrap(apperrors.ErrInvariantViolation, "unsupported entity kind")

	// ErrEntityKindNotInFlow indicates a flow that does not track this entity kind.
	ErrEntityKindNotInFlow = apperrors.Wrap(apperrors.ErrInvariantViolation, "entity kind not tracked by flow")

	// ErrStateLogNotFound indicates no latest pointer exists for the entity and flow.
	ErrStateLogNotFound = apperrors.Wrap(apperrors.ErrNotFound, "state log not found")

	// ErrPointerMoved indicates the latest pointer changed between read and upsert.
	ErrPointerMoved = apperrors.Wrap(apperrors.ErrConflict, "latest state log pointer moved")
)
