// Package usecase stages audit report details and exports them per batch run.
package usecase

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
)

// AuditReportRepository defines persistence operations for audit report details.
type AuditReportRepository interface {
	// Create appends a detail.
	Create(ctx context.Context, detail *auditDomain.AuditReportDetail) error

	// ListByBatchRun returns the details of a run whose reason code is in codes, oldest first.
	ListByBatchRun(
		ctx context.Context,
		batchRunID uuid.UUID,
		codes []auditDomain.ReasonCode,
	) ([]*auditDomain.AuditReportDetail, error)
}

// ExportResult describes an uploaded report workbook.
type ExportResult struct {
	Key  string
	Rows int
}

// AuditReportUseCase stages and reads audit report details.
type AuditReportUseCase interface {
	// Stage appends one detail per entry for the payment. Joins the transaction carried
	// by ctx so the details commit with the state transition that produced them.
	Stage(
		ctx context.Context,
		paymentID uuid.UUID,
		entries []auditDomain.Entry,
		batchRunID *uuid.UUID,
	) ([]*auditDomain.AuditReportDetail, error)

	// ListByBatchRun returns the details a run staged for the report type.
	ListByBatchRun(
		ctx context.Context,
		batchRunID uuid.UUID,
		reportType auditDomain.ReportType,
	) ([]*auditDomain.AuditReportDetail, error)

	// Export writes the run's details for the report type to an xlsx workbook in the
	// report bucket.
	Export(ctx context.Context, batchRunID uuid.UUID, reportType auditDomain.ReportType) (*ExportResult, error)
}
