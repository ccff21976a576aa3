package domain

import (
	"time"

	"github.com/google/uuid"
)

// StateLogEntry is an immutable record of one transition of an entity within a flow.
type StateLogEntry struct {
	ID           uuid.UUID
	Entity       EntityRef
	FlowID       FlowID
	StartStateID *StateID
	EndStateID   StateID
	Outcome      map[string]any
	BatchRunID   *uuid.UUID
	CreatedAt    time.Time
}

// LatestStateLogPointer points at the most recent entry of an entity within a flow.
type LatestStateLogPointer struct {
	Entity     EntityRef
	FlowID     FlowID
	StateLogID uuid.UUID
}

// Outcome builds the structured outcome payload stored with an entry.
func Outcome(message string, details map[string]any) map[string]any {
	outcome := map[string]any{"message": message}
	if len(details) > 0 {
		outcome["details"] = details
	}
	return outcome
}
