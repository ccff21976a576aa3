package domain

import (
	"fmt"
	"sort"
)

// FlowID identifies a flow. Values are persisted and must never change.
type FlowID int

// StateID identifies a state. Values are persisted and must never change.
type StateID int

const (
	FlowDelegatedPayment FlowID = 1
	FlowDelegatedEFT     FlowID = 2
	FlowPUBTransaction   FlowID = 3
	FlowCaseWriteback    FlowID = 4
	FlowDelegatedClaim   FlowID = 5
)

// Delegated payment states.
const (
	PaymentReceived                     StateID = 100
	PaymentAwaitingAddressValidation    StateID = 101
	PaymentAddressValidationError       StateID = 102
	PaymentAwaitingPostProcessing       StateID = 103
	PaymentStagedForAuditReportSampling StateID = 104
	PaymentAuditReportSent              StateID = 105
	PaymentCancellationPending          StateID = 106
	PaymentAddToErrorReport             StateID = 107
	PaymentErrorReportSent              StateID = 108
	PaymentCascadedError                StateID = 109
	PaymentAddToPUBTransactionEFT       StateID = 110
	PaymentPUBTransactionEFTSent        StateID = 111
	PaymentAddToPUBTransactionCheck     StateID = 112
	PaymentPUBTransactionCheckSent      StateID = 113
)

// Delegated EFT (prenote) states.
const (
	EFTPendingPrenote   StateID = 200
	EFTPrenoteSent      StateID = 201
	EFTEligible         StateID = 202
	EFTPrenoteRejected  StateID = 203
	EFTPrenoteEFTFailed StateID = 204
)

// PUB transaction states.
const (
	PUBTransactionAdded    StateID = 300
	PUBTransactionSent     StateID = 301
	PUBTransactionReturned StateID = 302
)

// Case system writeback states.
const (
	WritebackAdded StateID = 400
	WritebackSent  StateID = 401
)

// Delegated claim (claimant extract) states.
const (
	ClaimExtracted    StateID = 500
	ClaimExtractError StateID = 501
)

// Flow is a named, closed state graph.
type Flow struct {
	ID          FlowID
	Name        string
	EntityKinds []EntityKind
}

// State is a node belonging to exactly one flow.
type State struct {
	ID          StateID
	FlowID      FlowID
	Description string
	Terminal    bool
}

var flows = map[FlowID]Flow{
	FlowDelegatedPayment: {ID: FlowDelegatedPayment, Name: "Delegated Payment", EntityKinds: []EntityKind{EntityPayment}},
	FlowDelegatedEFT:     {ID: FlowDelegatedEFT, Name: "Delegated EFT", EntityKinds: []EntityKind{EntityPubEFT}},
	FlowPUBTransaction:   {ID: FlowPUBTransaction, Name: "PUB Transaction", EntityKinds: []EntityKind{EntityPayment}},
	FlowCaseWriteback:    {ID: FlowCaseWriteback, Name: "Case System Writeback", EntityKinds: []EntityKind{EntityPayment}},
	FlowDelegatedClaim: {
		ID:          FlowDelegatedClaim,
		Name:        "Delegated Claim",
		EntityKinds: []EntityKind{EntityClaim, EntityEmployee},
	},
}

var states = map[StateID]State{}

func init() {
	register := func(flowID FlowID, id StateID, description string, terminal bool) {
		states[id] = State{ID: id, FlowID: flowID, Description: description, Terminal: terminal}
	}

	register(FlowDelegatedPayment, PaymentReceived, "Payment received from case system extract", false)
	register(FlowDelegatedPayment, PaymentAwaitingAddressValidation, "Payment awaiting address validation", false)
	register(FlowDelegatedPayment, PaymentAddressValidationError, "Add to payment error report - address validation", true)
	register(FlowDelegatedPayment, PaymentAwaitingPostProcessing, "Payment awaiting post-processing check", false)
	register(FlowDelegatedPayment, PaymentStagedForAuditReportSampling, "Staged for payment audit report sampling", false)
	register(FlowDelegatedPayment, PaymentAuditReportSent, "Payment audit report sent", false)
	register(FlowDelegatedPayment, PaymentCancellationPending, "Payment audit response - cancellation pending", false)
	register(FlowDelegatedPayment, PaymentAddToErrorReport, "Add to payment error report", true)
	register(FlowDelegatedPayment, PaymentErrorReportSent, "Payment error report sent", true)
	register(FlowDelegatedPayment, PaymentCascadedError, "Add to payment error report - cascaded", true)
	register(FlowDelegatedPayment, PaymentAddToPUBTransactionEFT, "Add to PUB transaction - EFT", false)
	register(FlowDelegatedPayment, PaymentPUBTransactionEFTSent, "PUB transaction sent - EFT", true)
	register(FlowDelegatedPayment, PaymentAddToPUBTransactionCheck, "Add to PUB transaction - check", false)
	register(FlowDelegatedPayment, PaymentPUBTransactionCheckSent, "PUB transaction sent - check", true)

	register(FlowDelegatedEFT, EFTPendingPrenote, "EFT account pending prenote", false)
	register(FlowDelegatedEFT, EFTPrenoteSent, "EFT prenote sent", false)
	register(FlowDelegatedEFT, EFTEligible, "EFT account eligible", true)
	register(FlowDelegatedEFT, EFTPrenoteRejected, "EFT prenote rejected", true)
	register(FlowDelegatedEFT, EFTPrenoteEFTFailed, "EFT prenote failed", true)

	register(FlowPUBTransaction, PUBTransactionAdded, "Added to PUB transaction file", false)
	register(FlowPUBTransaction, PUBTransactionSent, "PUB transaction file sent", false)
	register(FlowPUBTransaction, PUBTransactionReturned, "PUB transaction returned", true)

	register(FlowCaseWriteback, WritebackAdded, "Added to case system writeback", false)
	register(FlowCaseWriteback, WritebackSent, "Case system writeback sent", true)

	register(FlowDelegatedClaim, ClaimExtracted, "Claim extracted from case system", false)
	register(FlowDelegatedClaim, ClaimExtractError, "Claim extract error", true)
}

// GetFlow returns the flow with the given id.
func GetFlow(id FlowID) (Flow, error) {
	flow, ok := flows[id]
	if !ok {
		return Flow{}, fmt.Errorf("%w: %d", ErrUnknownFlow, id)
	}
	return flow, nil
}

// GetState returns the state with the given id.
func GetState(id StateID) (State, error) {
	state, ok := states[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownState, id)
	}
	return state, nil
}

// Flows returns all flows ordered by id.
func Flows() []Flow {
	result := make([]Flow, 0, len(flows))
	for _, flow := range flows {
		result = append(result, flow)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// StatesOf returns the states of a flow ordered by id.
func StatesOf(flowID FlowID) []State {
	var result []State
	for _, state := range states {
		if state.FlowID == flowID {
			result = append(result, state)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Tracks reports whether the flow accepts entities of kind k.
func (f Flow) Tracks(k EntityKind) bool {
	for _, kind := range f.EntityKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// ValidateFlowEntity checks that the flow exists and tracks the entity's kind.
func ValidateFlowEntity(entity EntityRef, flowID FlowID) (Flow, error) {
	if err := entity.Validate(); err != nil {
		return Flow{}, err
	}
	flow, err := GetFlow(flowID)
	if err != nil {
		return Flow{}, err
	}
	if !flow.Tracks(entity.Kind) {
		return Flow{}, fmt.Errorf("%w: %s in %q", ErrEntityKindNotInFlow, entity.Kind, flow.Name)
	}
	return flow, nil
}

// ValidateTransition checks that endState belongs to the flow and the flow tracks the
// entity's kind.
func ValidateTransition(entity EntityRef, flowID FlowID, endState StateID) (State, error) {
	flow, err := ValidateFlowEntity(entity, flowID)
	if err != nil {
		return State{}, err
	}
	state, err := GetState(endState)
	if err != nil {
		return State{}, err
	}
	if state.FlowID != flow.ID {
		return State{}, fmt.Errorf("%w: state %d (%s) in %q", ErrStateNotInFlow, state.ID, state.Description, flow.Name)
	}
	return state, nil
}
