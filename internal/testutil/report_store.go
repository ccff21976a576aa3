package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

// MemoryAuditReportRepository keeps audit report details in memory.
type MemoryAuditReportRepository struct {
	mu      sync.Mutex
	details []*auditDomain.AuditReportDetail
}

// NewMemoryAuditReportRepository creates an empty repository.
func NewMemoryAuditReportRepository() *MemoryAuditReportRepository {
	return &MemoryAuditReportRepository{}
}

// Create stores a copy of detail.
func (r *MemoryAuditReportRepository) Create(_ context.Context, detail *auditDomain.AuditReportDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *detail
	r.details = append(r.details, &stored)
	return nil
}

// ListByBatchRun returns copies of the run's details with the given reason codes.
func (r *MemoryAuditReportRepository) ListByBatchRun(
	_ context.Context,
	batchRunID uuid.UUID,
	codes []auditDomain.ReasonCode,
) ([]*auditDomain.AuditReportDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*auditDomain.AuditReportDetail, 0)
	for _, detail := range r.details {
		if detail.BatchRunID != nil && *detail.BatchRunID == batchRunID && slices.Contains(codes, detail.ReasonCode) {
			copied := *detail
			result = append(result, &copied)
		}
	}
	return result, nil
}

// ByPayment returns copies of every detail staged for the payment.
func (r *MemoryAuditReportRepository) ByPayment(paymentID uuid.UUID) []auditDomain.AuditReportDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []auditDomain.AuditReportDetail
	for _, detail := range r.details {
		if detail.PaymentID == paymentID {
			result = append(result, *detail)
		}
	}
	return result
}

// Count returns the number of stored details.
func (r *MemoryAuditReportRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.details)
}

// MemoryWritebackRepository keeps writeback rows in memory. ClaimUnsent does not lock.
type MemoryWritebackRepository struct {
	mu       sync.Mutex
	details  []*writebackDomain.WritebackDetail
	attempts []writebackDomain.WritebackAttempt
}

// NewMemoryWritebackRepository creates an empty repository.
func NewMemoryWritebackRepository() *MemoryWritebackRepository {
	return &MemoryWritebackRepository{}
}

// Create stores a copy of detail.
func (r *MemoryWritebackRepository) Create(_ context.Context, detail *writebackDomain.WritebackDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *detail
	r.details = append(r.details, &stored)
	return nil
}

// ClaimUnsent returns copies of up to limit unsent rows in insertion order.
func (r *MemoryWritebackRepository) ClaimUnsent(_ context.Context, limit int) ([]*writebackDomain.WritebackDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*writebackDomain.WritebackDetail, 0)
	for _, detail := range r.details {
		if len(result) == limit {
			break
		}
		if !detail.Sent() {
			copied := *detail
			result = append(result, &copied)
		}
	}
	return result, nil
}

// MarkSent stamps the unsent rows among ids.
func (r *MemoryWritebackRepository) MarkSent(_ context.Context, ids []uuid.UUID, sentAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, detail := range r.details {
		if !detail.Sent() && slices.Contains(ids, detail.ID) {
			stamp := sentAt
			detail.SentAt = &stamp
			updated++
		}
	}
	return updated, nil
}

// ByPayment returns copies of every row staged for the payment.
func (r *MemoryWritebackRepository) ByPayment(paymentID uuid.UUID) []writebackDomain.WritebackDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []writebackDomain.WritebackDetail
	for _, detail := range r.details {
		if detail.PaymentID == paymentID {
			result = append(result, *detail)
		}
	}
	return result
}

// CreateAttempt stores a copy of attempt.
func (r *MemoryWritebackRepository) CreateAttempt(_ context.Context, attempt *writebackDomain.WritebackAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *attempt)
	return nil
}

// Attempts returns copies of the stored failed attempts.
func (r *MemoryWritebackRepository) Attempts() []writebackDomain.WritebackAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.attempts)
}

// Count returns the number of stored rows.
func (r *MemoryWritebackRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.details)
}
