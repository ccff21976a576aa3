package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWasProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("text-output", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		checker.On("WasProcessedWithinBusinessDays", ctx, "case-writeback", "writeback_sent_count", 3).
			Return(true, nil).
			Once()

		var out bytes.Buffer
		err := RunWasProcessed(ctx, checker, &out, "case-writeback", "writeback_sent_count", 3, "text")

		require.NoError(t, err)
		require.Equal(t, "true\n", out.String())
		checker.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		checker.On("WasProcessedWithinBusinessDays", ctx, "case-writeback", "writeback_sent_count", 1).
			Return(false, nil).
			Once()

		var out bytes.Buffer
		err := RunWasProcessed(ctx, checker, &out, "case-writeback", "writeback_sent_count", 1, "json")
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, false, result["processed"])
		require.Equal(t, float64(1), result["business_days"])
		checker.AssertExpectations(t)
	})

	t.Run("missing-metric", func(t *testing.T) {
		err := RunWasProcessed(ctx, &MockProcessedChecker{}, &bytes.Buffer{}, "case-writeback", "", 1, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "run type and metric are required")
	})

	t.Run("checker-error", func(t *testing.T) {
		checker := &MockProcessedChecker{}
		checker.On("WasProcessedWithinBusinessDays", ctx, "case-writeback", "writeback_sent_count", -1).
			Return(false, errors.New("business days must not be negative")).
			Once()

		err := RunWasProcessed(ctx, checker, &bytes.Buffer{}, "case-writeback", "writeback_sent_count", -1, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to check batch runs")
		checker.AssertExpectations(t)
	})
}
