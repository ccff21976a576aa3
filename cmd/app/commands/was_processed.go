package commands

import (
	"context"
	"fmt"
	"io"
)

// RunWasProcessed prints whether a run of runType recorded a positive count for metric
// within the trailing businessDays business days.
func RunWasProcessed(
	ctx context.Context,
	checker ProcessedChecker,
	writer io.Writer,
	runType, metric string,
	businessDays int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if runType == "" || metric == "" {
		return fmt.Errorf("run type and metric are required")
	}

	processed, err := checker.WasProcessedWithinBusinessDays(ctx, runType, metric, businessDays)
	if err != nil {
		return fmt.Errorf("failed to check batch runs: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"run_type":      runType,
			"metric":        metric,
			"business_days": businessDays,
			"processed":     processed,
		})
	}

	_, _ = fmt.Fprintf(writer, "%t\n", processed)
	return nil
}
