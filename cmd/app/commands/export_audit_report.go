package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
)

// AuditReportExporter writes a run's audit details to a workbook.
type AuditReportExporter interface {
	Export(
		ctx context.Context,
		batchRunID uuid.UUID,
		reportType auditDomain.ReportType,
	) (*auditUseCase.ExportResult, error)
}

// RunExportAuditReport exports the audit details a batch run staged for reportType.
func RunExportAuditReport(
	ctx context.Context,
	exporter AuditReportExporter,
	logger *slog.Logger,
	writer io.Writer,
	batchRunID string,
	reportType string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	runID, err := uuid.Parse(batchRunID)
	if err != nil {
		return fmt.Errorf("invalid batch run id: %w", err)
	}

	rt := auditDomain.ReportType(reportType)
	if !rt.IsValid() {
		return fmt.Errorf(
			"invalid report type: %s (valid options: %s, %s)",
			reportType,
			auditDomain.ReportTypePaymentAudit,
			auditDomain.ReportTypePaymentError,
		)
	}

	logger.Info("exporting audit report",
		slog.String("batch_run_id", runID.String()),
		slog.String("report_type", reportType),
	)

	result, err := exporter.Export(ctx, runID, rt)
	if err != nil {
		return fmt.Errorf("failed to export audit report: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"batch_run_id": runID.String(),
			"report_type":  reportType,
			"key":          result.Key,
			"rows":         result.Rows,
		})
	}

	_, _ = fmt.Fprintf(writer, "Exported %d row(s) to %s\n", result.Rows, result.Key)
	return nil
}
