// Package domain defines audit report details and the closed set of report reasons.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/paidleave/internal/errors"
)

// ReportType groups reasons into the report they are published in.
type ReportType string

const (
	// ReportTypePaymentAudit is the sampling report reviewed before disbursement.
	ReportTypePaymentAudit ReportType = "payment_audit"
	// ReportTypePaymentError lists payments that will not be disbursed.
	ReportTypePaymentError ReportType = "payment_error"
)

// IsValid reports whether t is a known report type.
func (t ReportType) IsValid() bool {
	return t == ReportTypePaymentAudit || t == ReportTypePaymentError
}

// ReasonCode identifies why a payment appears in a report.
type ReasonCode string

const (
	ReasonLeavePlanInReview         ReasonCode = "leave_plan_in_review"
	ReasonInWaitingWeek             ReasonCode = "in_waiting_week"
	ReasonMaxWeeklyBenefitsExceeded ReasonCode = "max_weekly_benefits_exceeded"
	ReasonLeaveDurationMaxExceeded  ReasonCode = "leave_duration_max_exceeded"
	ReasonPaymentCancelled          ReasonCode = "payment_cancelled"
	ReasonAddressValidationError    ReasonCode = "address_validation_error"
)

// Reason describes a reason code. Mirrored into lk_audit_report_reasons.
type Reason struct {
	Code        ReasonCode
	Description string
	ReportType  ReportType
}

var (
	// ErrUnknownReasonCode indicates a reason code outside the registry.
	ErrUnknownReasonCode = apperrors.Wrap(apperrors.ErrInvariantViolation, "unknown audit report reason")

	// ErrInvalidReportType indicates a report type other than payment_audit or payment_error.
	ErrInvalidReportType = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid report type")
)

var reasons = map[ReasonCode]Reason{
	ReasonLeavePlanInReview: {
		Code: ReasonLeavePlanInReview, Description: "Leave plan still in review", ReportType: ReportTypePaymentAudit,
	},
	ReasonInWaitingWeek: {
		Code: ReasonInWaitingWeek, Description: "Payment period is within the waiting week",
		ReportType: ReportTypePaymentAudit,
	},
	ReasonMaxWeeklyBenefitsExceeded: {
		Code: ReasonMaxWeeklyBenefitsExceeded, Description: "Maximum weekly benefit amount exceeded",
		ReportType: ReportTypePaymentError,
	},
	ReasonLeaveDurationMaxExceeded: {
		Code: ReasonLeaveDurationMaxExceeded, Description: "Maximum leave duration exceeded in benefit year",
		ReportType: ReportTypePaymentError,
	},
	ReasonPaymentCancelled: {
		Code: ReasonPaymentCancelled, Description: "Payment cancelled by audit response",
		ReportType: ReportTypePaymentError,
	},
	ReasonAddressValidationError: {
		Code: ReasonAddressValidationError, Description: "Payment address failed validation",
		ReportType: ReportTypePaymentError,
	},
}

// GetReason returns the registered reason for code.
func GetReason(code ReasonCode) (Reason, error) {
	reason, ok := reasons[code]
	if !ok {
		return Reason{}, apperrors.Wrapf(ErrUnknownReasonCode, "reason %q", code)
	}
	return reason, nil
}

// ReasonCodesOf returns the codes published in the report type, sorted.
func ReasonCodesOf(reportType ReportType) []ReasonCode {
	var codes []ReasonCode
	for code, reason := range reasons {
		if reason.ReportType == reportType {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	return codes
}

// Entry is an audit detail proposed by a processor, before it is staged.
type Entry struct {
	ReasonCode ReasonCode
	Message    map[string]any
}

// NewEntry builds an entry whose message is the reason description plus details.
// Unknown codes produce an entry that Stage rejects.
func NewEntry(code ReasonCode, details map[string]any) Entry {
	message := map[string]any{"message": reasons[code].Description}
	if len(details) > 0 {
		message["details"] = details
	}
	return Entry{ReasonCode: code, Message: message}
}

// AuditReportDetail is an append-only explanation attached to a payment.
type AuditReportDetail struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	ReasonCode ReasonCode
	Message    map[string]any
	BatchRunID *uuid.UUID
	CreatedAt  time.Time
}
