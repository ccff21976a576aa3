package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	paymentDomain "github.com/allisson/paidleave/internal/payment/domain"
)

// MemoryPaymentStore keeps employees, claims, payments and PUB EFT accounts in memory.
// Its repository views (Employees, Claims, Payments, PubEFTs) satisfy the payment
// usecase repository interfaces.
type MemoryPaymentStore struct {
	mu        sync.Mutex
	employees []*paymentDomain.Employee
	claims    []*paymentDomain.Claim
	payments  []*paymentDomain.Payment
	pubEFTs   []*paymentDomain.PubEFT
	nextPubID int64
}

// NewMemoryPaymentStore creates an empty store.
func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{}
}

// Employees returns the employee repository view.
func (s *MemoryPaymentStore) Employees() *MemoryEmployeeRepository { return &MemoryEmployeeRepository{s} }

// Claims returns the claim repository view.
func (s *MemoryPaymentStore) Claims() *MemoryClaimRepository { return &MemoryClaimRepository{s} }

// Payments returns the payment repository view.
func (s *MemoryPaymentStore) Payments() *MemoryPaymentRepository { return &MemoryPaymentRepository{s} }

// PubEFTs returns the PUB EFT repository view.
func (s *MemoryPaymentStore) PubEFTs() *MemoryPubEFTRepository { return &MemoryPubEFTRepository{s} }

func (s *MemoryPaymentStore) pubID() int64 {
	s.nextPubID++
	return s.nextPubID
}

// MemoryEmployeeRepository is the employee view of MemoryPaymentStore.
type MemoryEmployeeRepository struct{ store *MemoryPaymentStore }

// Create stores a copy of employee.
func (r *MemoryEmployeeRepository) Create(_ context.Context, employee *paymentDomain.Employee) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *employee
	r.store.employees = append(r.store.employees, &stored)
	return nil
}

// GetByIDs returns copies of the employees with the given ids.
func (r *MemoryEmployeeRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*paymentDomain.Employee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make([]*paymentDomain.Employee, 0)
	for _, employee := range r.store.employees {
		if slices.Contains(ids, employee.ID) {
			copied := *employee
			result = append(result, &copied)
		}
	}
	return result, nil
}

// MemoryClaimRepository is the claim view of MemoryPaymentStore.
type MemoryClaimRepository struct{ store *MemoryPaymentStore }

// Create stores a copy of claim.
func (r *MemoryClaimRepository) Create(_ context.Context, claim *paymentDomain.Claim) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *claim
	r.store.claims = append(r.store.claims, &stored)
	return nil
}

// GetByIDs returns copies of the claims with the given ids.
func (r *MemoryClaimRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*paymentDomain.Claim, error) {
	return r.filter(func(c *paymentDomain.Claim) bool { return slices.Contains(ids, c.ID) }), nil
}

// ListByEmployeeIDs returns copies of the claims of the given employees.
func (r *MemoryClaimRepository) ListByEmployeeIDs(
	_ context.Context,
	employeeIDs []uuid.UUID,
) ([]*paymentDomain.Claim, error) {
	return r.filter(func(c *paymentDomain.Claim) bool { return slices.Contains(employeeIDs, c.EmployeeID) }), nil
}

func (r *MemoryClaimRepository) filter(keep func(*paymentDomain.Claim) bool) []*paymentDomain.Claim {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make([]*paymentDomain.Claim, 0)
	for _, claim := range r.store.claims {
		if keep(claim) {
			copied := *claim
			result = append(result, &copied)
		}
	}
	return result
}

// MemoryPaymentRepository is the payment view of MemoryPaymentStore.
type MemoryPaymentRepository struct{ store *MemoryPaymentStore }

// Create stores a copy of payment and assigns the next PUB individual id.
func (r *MemoryPaymentRepository) Create(_ context.Context, payment *paymentDomain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	payment.PubIndividualID = r.store.pubID()
	stored := *payment
	r.store.payments = append(r.store.payments, &stored)
	return nil
}

// Get returns a copy of the payment.
func (r *MemoryPaymentRepository) Get(_ context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	found := r.filter(func(p *paymentDomain.Payment) bool { return p.ID == id })
	if len(found) == 0 {
		return nil, paymentDomain.ErrPaymentNotFound
	}
	return found[0], nil
}

// GetByIDs returns copies of the payments with the given ids.
func (r *MemoryPaymentRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*paymentDomain.Payment, error) {
	return r.filter(func(p *paymentDomain.Payment) bool { return slices.Contains(ids, p.ID) }), nil
}

// GetByPubIndividualID returns a copy of the payment with the PUB individual id.
func (r *MemoryPaymentRepository) GetByPubIndividualID(
	_ context.Context,
	pubIndividualID int64,
) (*paymentDomain.Payment, error) {
	found := r.filter(func(p *paymentDomain.Payment) bool { return p.PubIndividualID == pubIndividualID })
	if len(found) == 0 {
		return nil, paymentDomain.ErrPaymentNotFound
	}
	return found[0], nil
}

// ListByClaimIDs returns copies of the payments of the given claims.
func (r *MemoryPaymentRepository) ListByClaimIDs(
	_ context.Context,
	claimIDs []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return r.filter(func(p *paymentDomain.Payment) bool {
		return p.ClaimID != nil && slices.Contains(claimIDs, *p.ClaimID)
	}), nil
}

// ListByEmployeeIDs returns copies of the payments of the given employees.
func (r *MemoryPaymentRepository) ListByEmployeeIDs(
	_ context.Context,
	employeeIDs []uuid.UUID,
) ([]*paymentDomain.Payment, error) {
	return r.filter(func(p *paymentDomain.Payment) bool {
		return p.EmployeeID != nil && slices.Contains(employeeIDs, *p.EmployeeID)
	}), nil
}

func (r *MemoryPaymentRepository) filter(keep func(*paymentDomain.Payment) bool) []*paymentDomain.Payment {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make([]*paymentDomain.Payment, 0)
	for _, payment := range r.store.payments {
		if keep(payment) {
			copied := *payment
			result = append(result, &copied)
		}
	}
	return result
}

// MemoryPubEFTRepository is the PUB EFT view of MemoryPaymentStore.
type MemoryPubEFTRepository struct{ store *MemoryPaymentStore }

// Create stores a copy of eft and assigns the next PUB individual id.
func (r *MemoryPubEFTRepository) Create(_ context.Context, eft *paymentDomain.PubEFT) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	eft.PubIndividualID = r.store.pubID()
	stored := *eft
	r.store.pubEFTs = append(r.store.pubEFTs, &stored)
	return nil
}

// GetByPubIndividualID returns a copy of the account with the PUB individual id.
func (r *MemoryPubEFTRepository) GetByPubIndividualID(
	_ context.Context,
	pubIndividualID int64,
) (*paymentDomain.PubEFT, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, eft := range r.store.pubEFTs {
		if eft.PubIndividualID == pubIndividualID {
			copied := *eft
			return &copied, nil
		}
	}
	return nil, paymentDomain.ErrPubEFTNotFound
}
