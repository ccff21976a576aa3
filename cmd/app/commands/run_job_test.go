package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	"github.com/allisson/paidleave/internal/joblock"
	"github.com/allisson/paidleave/internal/step"
)

func newRunContext(runType string) *step.RunContext {
	rc := step.NewRunContext("test", runType)
	rc.Run = &batchrunDomain.BatchRun{
		ID:      uuid.Must(uuid.NewV7()),
		Source:  "test",
		RunType: runType,
		Status:  batchrunDomain.StatusSuccess,
	}
	return rc
}

func TestRunJob(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	job := step.Job{
		Source:  "test",
		RunType: "payment-post-processing",
		Steps:   []step.Step{namedStep{name: "post-processing"}},
	}

	t.Run("success-text", func(t *testing.T) {
		rc := newRunContext(job.RunType)
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, job).Return(rc, nil).Once()

		var out bytes.Buffer
		err := RunJob(ctx, runner, logger, &out, job, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), rc.Run.ID.String())
		require.Contains(t, out.String(), "payment-post-processing")
		require.Contains(t, out.String(), "success")
		runner.AssertExpectations(t)
	})

	t.Run("success-json", func(t *testing.T) {
		rc := newRunContext(job.RunType)
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, job).Return(rc, nil).Once()

		var out bytes.Buffer
		err := RunJob(ctx, runner, logger, &out, job, "json")
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, rc.Run.ID.String(), result["batch_run_id"])
		require.Equal(t, "success", result["status"])
		runner.AssertExpectations(t)
	})

	t.Run("step-failure", func(t *testing.T) {
		rc := newRunContext(job.RunType)
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, job).Return(rc, errors.New("step post-processing: boom")).Once()

		var out bytes.Buffer
		err := RunJob(ctx, runner, logger, &out, job, "json")

		require.Error(t, err)
		require.Contains(t, err.Error(), "job payment-post-processing failed")
		require.Contains(t, out.String(), "boom")
		runner.AssertExpectations(t)
	})

	t.Run("begin-failure", func(t *testing.T) {
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, job).Return(step.NewRunContext("test", job.RunType), errors.New("db down")).Once()

		var out bytes.Buffer
		err := RunJob(ctx, runner, logger, &out, job, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to start batch run")
		require.Empty(t, out.String())
		runner.AssertExpectations(t)
	})

	t.Run("lock-held-elsewhere", func(t *testing.T) {
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, job).Return(nil, joblock.ErrNotObtained).Once()

		var out bytes.Buffer
		err := RunJob(ctx, runner, logger, &out, job, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Skipped: payment-post-processing is already running")
		runner.AssertExpectations(t)
	})

	t.Run("lock-held-elsewhere-json", func(t *testing.T) {
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, job).Return(nil, joblock.ErrNotObtained).Once()

		var out bytes.Buffer
		err := RunJob(ctx, runner, logger, &out, job, "json")
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, true, result["skipped"])
		runner.AssertExpectations(t)
	})

	t.Run("invalid-format", func(t *testing.T) {
		runner := &MockJobRunner{}
		err := RunJob(ctx, runner, logger, &bytes.Buffer{}, job, "xml")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid format")
		runner.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)
	})

	t.Run("no-steps", func(t *testing.T) {
		runner := &MockJobRunner{}
		err := RunJob(ctx, runner, logger, &bytes.Buffer{}, step.Job{RunType: "empty"}, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "job has no steps")
	})
}
