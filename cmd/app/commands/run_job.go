package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	"github.com/allisson/paidleave/internal/joblock"
	"github.com/allisson/paidleave/internal/step"
)

// JobRunner executes a job under one batch run.
type JobRunner interface {
	RunJob(ctx context.Context, job step.Job) (*step.RunContext, error)
}

// RunJob runs job and prints the batch run it produced. Step failures are reported
// after the output so the process exits non-zero.
func RunJob(
	ctx context.Context,
	runner JobRunner,
	logger *slog.Logger,
	writer io.Writer,
	job step.Job,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if len(job.Steps) == 0 {
		return errors.New("job has no steps")
	}

	logger.Info("running job",
		slog.String("run_type", job.RunType),
		slog.String("source", job.Source),
		slog.Int("steps", len(job.Steps)),
	)

	rc, jobErr := runner.RunJob(ctx, job)
	if errors.Is(jobErr, joblock.ErrNotObtained) {
		logger.Warn("job already running in another process, skipping",
			slog.String("run_type", job.RunType),
		)
		if format == "json" {
			return writeJSON(writer, map[string]interface{}{
				"run_type": job.RunType,
				"skipped":  true,
			})
		}
		_, _ = fmt.Fprintf(writer, "Skipped: %s is already running in another process\n", job.RunType)
		return nil
	}
	if rc == nil || rc.Run == nil {
		if jobErr == nil {
			jobErr = errors.New("job did not start a batch run")
		}
		return fmt.Errorf("failed to start batch run: %w", jobErr)
	}

	status := batchrunDomain.StatusSuccess
	if rc.Failed() {
		status = batchrunDomain.StatusError
	}

	if format == "json" {
		result := map[string]interface{}{
			"batch_run_id": rc.Run.ID.String(),
			"run_type":     rc.RunType,
			"status":       string(status),
			"metrics":      rc.Report(),
		}
		if jobErr != nil {
			result["error"] = jobErr.Error()
		}
		if err := writeJSON(writer, result); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Batch run %s (%s): %s\n", rc.Run.ID, rc.RunType, status)
		writeCounters(writer, rc.Report())
	}

	if jobErr != nil {
		return fmt.Errorf("job %s failed: %w", job.RunType, jobErr)
	}

	logger.Info("job completed",
		slog.String("batch_run_id", rc.Run.ID.String()),
		slog.Any("metrics", rc.Report()),
	)
	return nil
}
