// Package domain defines the payment lifecycle state model: flows, states, entity
// references and the append-only state log.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityKind is the closed set of entity types a state log entry can be associated with.
type EntityKind string

const (
	EntityPayment  EntityKind = "payment"
	EntityClaim    EntityKind = "claim"
	EntityEmployee EntityKind = "employee"
	EntityPubEFT   EntityKind = "pub_eft"
)

// IsValid reports whether k is one of the supported entity kinds.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityPayment, EntityClaim, EntityEmployee, EntityPubEFT:
		return true
	}
	return false
}

// EntityRef references exactly one entity by kind and id.
type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
}

// PaymentRef returns a reference to a payment.
func PaymentRef(id uuid.UUID) EntityRef { return EntityRef{Kind: EntityPayment, ID: id} }

// ClaimRef returns a reference to a claim.
func ClaimRef(id uuid.UUID) EntityRef { return EntityRef{Kind: EntityClaim, ID: id} }

// EmployeeRef returns a reference to an employee.
func EmployeeRef(id uuid.UUID) EntityRef { return EntityRef{Kind: EntityEmployee, ID: id} }

// PubEFTRef returns a reference to a PUB EFT account.
func PubEFTRef(id uuid.UUID) EntityRef { return EntityRef{Kind: EntityPubEFT, ID: id} }

// Validate checks the reference resolves to exactly one supported kind.
func (r EntityRef) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedEntityKind, r.Kind)
	}
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: empty %s id", ErrUnsupportedEntityKind, r.Kind)
	}
	return nil
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}
