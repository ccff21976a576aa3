package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/paidleave/internal/step"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// WritebackRunType is the batch run type of writeback transmissions.
const WritebackRunType = "case-writeback"

// ProcessedChecker answers whether a run type already processed a metric recently.
type ProcessedChecker interface {
	WasProcessedWithinBusinessDays(ctx context.Context, runType, metric string, businessDays int) (bool, error)
}

// RunTransmitWriteback transmits unsent writeback rows in a batch run. When
// guardBusinessDays is positive and force is false, it refuses to send again if a
// previous run sent rows within that many business days.
func RunTransmitWriteback(
	ctx context.Context,
	runner JobRunner,
	checker ProcessedChecker,
	transmitStep step.Step,
	logger *slog.Logger,
	writer io.Writer,
	source string,
	guardBusinessDays int,
	force bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if guardBusinessDays < 0 {
		return fmt.Errorf("guard business days must not be negative, got: %d", guardBusinessDays)
	}

	if guardBusinessDays > 0 && !force {
		processed, err := checker.WasProcessedWithinBusinessDays(
			ctx,
			WritebackRunType,
			writebackUseCase.CounterSent,
			guardBusinessDays,
		)
		if err != nil {
			return fmt.Errorf("failed to check previous writeback runs: %w", err)
		}
		if processed {
			logger.Warn("writeback already sent recently, skipping",
				slog.Int("guard_business_days", guardBusinessDays),
			)
			if format == "json" {
				return writeJSON(writer, map[string]interface{}{
					"skipped":             true,
					"guard_business_days": guardBusinessDays,
				})
			}
			_, _ = fmt.Fprintf(
				writer,
				"Skipped: writeback already sent within %d business day(s); use --force to send again\n",
				guardBusinessDays,
			)
			return nil
		}
	}

	return RunJob(ctx, runner, logger, writer, step.Job{
		Source:  source,
		RunType: WritebackRunType,
		Steps:   []step.Step{transmitStep},
	}, format)
}
