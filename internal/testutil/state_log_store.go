package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

type pointerKey struct {
	entity stateDomain.EntityRef
	flowID stateDomain.FlowID
}

// MemoryStateLogRepository is an in-memory state log repository with the same
// compare-and-swap pointer semantics as the SQL implementations.
type MemoryStateLogRepository struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*stateDomain.StateLogEntry
	order    []uuid.UUID
	pointers map[pointerKey]uuid.UUID

	// ForcedConflicts makes the next N pointer upserts fail as if another writer won.
	ForcedConflicts int
	// UpsertCalls counts pointer upserts, including forced conflicts.
	UpsertCalls int
}

// NewMemoryStateLogRepository creates an empty in-memory state log repository.
func NewMemoryStateLogRepository() *MemoryStateLogRepository {
	return &MemoryStateLogRepository{
		entries:  make(map[uuid.UUID]*stateDomain.StateLogEntry),
		pointers: make(map[pointerKey]uuid.UUID),
	}
}

// Create appends an entry.
func (r *MemoryStateLogRepository) Create(_ context.Context, entry *stateDomain.StateLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	r.entries[entry.ID] = &stored
	r.order = append(r.order, entry.ID)
	return nil
}

// GetLatest returns a copy of the entry the pointer references.
func (r *MemoryStateLogRepository) GetLatest(
	_ context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.StateLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.pointers[pointerKey{entity: entity, flowID: flowID}]
	if !ok {
		return nil, stateDomain.ErrStateLogNotFound
	}
	entry := *r.entries[id]
	return &entry, nil
}

// LockLatest behaves like GetLatest.
func (r *MemoryStateLogRepository) LockLatest(
	ctx context.Context,
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) (*stateDomain.StateLogEntry, error) {
	return r.GetLatest(ctx, entity, flowID)
}

// UpsertLatest moves the pointer when it still references expected.
func (r *MemoryStateLogRepository) UpsertLatest(
	_ context.Context,
	pointer *stateDomain.LatestStateLogPointer,
	expected *uuid.UUID,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.UpsertCalls++
	if r.ForcedConflicts > 0 {
		r.ForcedConflicts--
		return stateDomain.ErrPointerMoved
	}

	key := pointerKey{entity: pointer.Entity, flowID: pointer.FlowID}
	current, ok := r.pointers[key]
	switch {
	case !ok && expected != nil, ok && expected == nil, ok && current != *expected:
		return stateDomain.ErrPointerMoved
	}
	r.pointers[key] = pointer.StateLogID
	return nil
}

// GetLatestStates returns the current end state of each id with a pointer.
func (r *MemoryStateLogRepository) GetLatestStates(
	_ context.Context,
	kind stateDomain.EntityKind,
	ids []uuid.UUID,
	flowID stateDomain.FlowID,
) (map[uuid.UUID]stateDomain.StateID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[uuid.UUID]stateDomain.StateID)
	for _, id := range ids {
		entity := stateDomain.EntityRef{Kind: kind, ID: id}
		if logID, ok := r.pointers[pointerKey{entity: entity, flowID: flowID}]; ok {
			result[id] = r.entries[logID].EndStateID
		}
	}
	return result, nil
}

// CountByState groups pointers of the flow by end state.
func (r *MemoryStateLogRepository) CountByState(
	_ context.Context,
	flowID stateDomain.FlowID,
) (map[stateDomain.StateID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[stateDomain.StateID]int64)
	for key, logID := range r.pointers {
		if key.flowID == flowID {
			counts[r.entries[logID].EndStateID]++
		}
	}
	return counts, nil
}

// ListCurrentByState returns the latest entries of the flow ending in stateID.
func (r *MemoryStateLogRepository) ListCurrentByState(
	_ context.Context,
	flowID stateDomain.FlowID,
	stateID stateDomain.StateID,
) ([]*stateDomain.StateLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*stateDomain.StateLogEntry
	for key, logID := range r.pointers {
		entry := r.entries[logID]
		if key.flowID == flowID && entry.EndStateID == stateID {
			copied := *entry
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// History returns every entry of the entity in the flow in insertion order.
func (r *MemoryStateLogRepository) History(
	entity stateDomain.EntityRef,
	flowID stateDomain.FlowID,
) []stateDomain.StateLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []stateDomain.StateLogEntry
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.Entity == entity && entry.FlowID == flowID {
			result = append(result, *entry)
		}
	}
	return result
}

// EntryCount returns the number of entries written across all entities and flows.
func (r *MemoryStateLogRepository) EntryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// PointerCount returns how many pointers exist for the entity in the flow.
func (r *MemoryStateLogRepository) PointerCount(entity stateDomain.EntityRef, flowID stateDomain.FlowID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pointers[pointerKey{entity: entity, flowID: flowID}]; ok {
		return 1
	}
	return 0
}
