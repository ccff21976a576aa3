package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/paidleave/internal/step"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

func TestRunTransmitWriteback(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	transmitStep := namedStep{name: writebackUseCase.TransmitStepName}
	expectedJob := step.Job{
		Source:  "scheduler",
		RunType: WritebackRunType,
		Steps:   []step.Step{transmitStep},
	}

	t.Run("guard-not-triggered", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		checker.On("WasProcessedWithinBusinessDays", ctx, WritebackRunType, writebackUseCase.CounterSent, 1).
			Return(false, nil).
			Once()
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, expectedJob).Return(newRunContext(WritebackRunType), nil).Once()

		var out bytes.Buffer
		err := RunTransmitWriteback(ctx, runner, checker, transmitStep, logger, &out, "scheduler", 1, false, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), WritebackRunType)
		checker.AssertExpectations(t)
		runner.AssertExpectations(t)
	})

	t.Run("guard-skips", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		checker.On("WasProcessedWithinBusinessDays", ctx, WritebackRunType, writebackUseCase.CounterSent, 2).
			Return(true, nil).
			Once()
		runner := &MockJobRunner{}

		var out bytes.Buffer
		err := RunTransmitWriteback(ctx, runner, checker, transmitStep, logger, &out, "scheduler", 2, false, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Skipped")
		runner.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)
		checker.AssertExpectations(t)
	})

	t.Run("force-bypasses-guard", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, expectedJob).Return(newRunContext(WritebackRunType), nil).Once()

		err := RunTransmitWriteback(ctx, runner, checker, transmitStep, logger, &bytes.Buffer{}, "scheduler", 2, true, "text")

		require.NoError(t, err)
		checker.AssertNotCalled(t, "WasProcessedWithinBusinessDays", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		runner.AssertExpectations(t)
	})

	t.Run("guard-disabled", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		runner := &MockJobRunner{}
		runner.On("RunJob", ctx, expectedJob).Return(newRunContext(WritebackRunType), nil).Once()

		err := RunTransmitWriteback(ctx, runner, checker, transmitStep, logger, &bytes.Buffer{}, "scheduler", 0, false, "json")

		require.NoError(t, err)
		checker.AssertNotCalled(t, "WasProcessedWithinBusinessDays", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		runner.AssertExpectations(t)
	})

	t.Run("guard-check-fails", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		checker.On("WasProcessedWithinBusinessDays", ctx, WritebackRunType, writebackUseCase.CounterSent, 1).
			Return(false, errors.New("db down")).
			Once()
		runner := &MockJobRunner{}

		err := RunTransmitWriteback(ctx, runner, checker, transmitStep, logger, &bytes.Buffer{}, "scheduler", 1, false, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to check previous writeback runs")
		runner.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)
	})

	t.Run("negative-guard", func(t *testing.T) {
		err := RunTransmitWriteback(ctx, nil, nil, transmitStep, logger, &bytes.Buffer{}, "scheduler", -1, false, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "must not be negative")
	})
}
