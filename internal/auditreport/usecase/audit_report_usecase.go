package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gocloud.dev/blob"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	"github.com/allisson/paidleave/internal/database"
	apperrors "github.com/allisson/paidleave/internal/errors"
	"github.com/allisson/paidleave/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var reportHeadings = []any{"Payment ID", "Reason Code", "Reason", "Message", "Details", "Batch Run ID", "Created At"}

// auditReportUseCase implements AuditReportUseCase.
type auditReportUseCase struct {
	txManager database.TxManager
	repo      AuditReportRepository
	bucket    storage.Bucket
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuditReportUseCase creates a new AuditReportUseCase. bucket may be nil when the
// caller never exports.
func NewAuditReportUseCase(
	txManager database.TxManager,
	repo AuditReportRepository,
	bucket storage.Bucket,
	logger *slog.Logger,
) AuditReportUseCase {
	return &auditReportUseCase{
		txManager: txManager,
		repo:      repo,
		bucket:    bucket,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Stage validates every reason code before writing any detail.
func (a *auditReportUseCase) Stage(
	ctx context.Context,
	paymentID uuid.UUID,
	entries []auditDomain.Entry,
	batchRunID *uuid.UUID,
) ([]*auditDomain.AuditReportDetail, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	details := make([]*auditDomain.AuditReportDetail, 0, len(entries))
	for _, entry := range entries {
		if _, err := auditDomain.GetReason(entry.ReasonCode); err != nil {
			return nil, err
		}
		details = append(details, &auditDomain.AuditReportDetail{
			ID:         uuid.Must(uuid.NewV7()),
			PaymentID:  paymentID,
			ReasonCode: entry.ReasonCode,
			Message:    entry.Message,
			BatchRunID: batchRunID,
			CreatedAt:  a.now(),
		})
	}

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, detail := range details {
			if err := a.repo.Create(ctx, detail); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// ListByBatchRun returns the run's details whose reason belongs to the report type.
func (a *auditReportUseCase) ListByBatchRun(
	ctx context.Context,
	batchRunID uuid.UUID,
	reportType auditDomain.ReportType,
) ([]*auditDomain.AuditReportDetail, error) {
	if !reportType.IsValid() {
		return nil, apperrors.Wrapf(auditDomain.ErrInvalidReportType, "report type %q", reportType)
	}
	return a.repo.ListByBatchRun(ctx, batchRunID, auditDomain.ReasonCodesOf(reportType))
}

// Export renders the details to a single-sheet workbook and uploads it under
// <report type>/<batch run id>.xlsx. An empty run still produces a workbook with headings.
func (a *auditReportUseCase) Export(
	ctx context.Context,
	batchRunID uuid.UUID,
	reportType auditDomain.ReportType,
) (*ExportResult, error) {
	if a.bucket == nil {
		return nil, apperrors.New("audit report bucket is not configured")
	}

	details, err := a.ListByBatchRun(ctx, batchRunID, reportType)
	if err != nil {
		return nil, err
	}

	data, err := renderWorkbook(string(reportType), details)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s.xlsx", reportType, batchRunID)
	if err := a.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: xlsxContentType}); err != nil {
		return nil, apperrors.Wrap(err, "failed to upload audit report")
	}

	a.logger.Info("audit report exported",
		slog.String("key", key),
		slog.String("report_type", string(reportType)),
		slog.String("batch_run_id", batchRunID.String()),
		slog.Int("rows", len(details)),
	)

	return &ExportResult{Key: key, Rows: len(details)}, nil
}

func renderWorkbook(sheet string, details []*auditDomain.AuditReportDetail) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, apperrors.Wrap(err, "failed to name report sheet")
	}
	if err := f.SetSheetRow(sheet, "A1", &reportHeadings); err != nil {
		return nil, apperrors.Wrap(err, "failed to write report headings")
	}

	for i, detail := range details {
		reason, _ := auditDomain.GetReason(detail.ReasonCode)
		message, _ := detail.Message["message"].(string)
		detailJSON := ""
		if raw, ok := detail.Message["details"]; ok {
			encoded, err := json.Marshal(raw)
			if err != nil {
				return nil, apperrors.Wrap(err, "failed to marshal report details")
			}
			detailJSON = string(encoded)
		}
		batchRunID := ""
		if detail.BatchRunID != nil {
			batchRunID = detail.BatchRunID.String()
		}

		row := []any{
			detail.PaymentID.String(),
			string(detail.ReasonCode),
			reason.Description,
			message,
			detailJSON,
			batchRunID,
			detail.CreatedAt.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to address report row")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, apperrors.Wrap(err, "failed to write report row")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to render audit report")
	}
	return buf.Bytes(), nil
}
