package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output contains a metric matching the
// given name, partial label pattern, and value. Uses regex to handle extra OTel scope
// labels injected by the Prometheus exporter.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestNewBatchMetrics(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	batchMetrics, err := NewBatchMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)
	assert.NotNil(t, batchMetrics)
}

func TestNewNoOpBatchMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBatchMetrics()

	assert.NotNil(t, noOpMetrics)
	assert.IsType(t, &NoOpBatchMetrics{}, noOpMetrics)

	t.Run("NoOp_DoesNotPanic", func(t *testing.T) {
		noOpMetrics.RecordStep(context.Background(), "post-processing", "post_processing", "success", time.Second)
		noOpMetrics.RecordCounters(context.Background(), "post-processing", "post_processing",
			map[string]int64{"payment_in_waiting_week_count": 3})
	})
}

func TestBatchMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBatchMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordStep(ctx, "post-processing", "post_processing", "success", 50*time.Millisecond)
	bm.RecordStep(ctx, "post-processing", "post_processing", "success", 70*time.Millisecond)
	bm.RecordStep(ctx, "post-processing", "payment_cancellation", "error", 10*time.Millisecond)
	bm.RecordCounters(ctx, "post-processing", "post_processing", map[string]int64{
		"payment_in_waiting_week_count":     2,
		"payment_not_in_waiting_week_count": 0,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)
	output := w.Body.String()

	assertMetricLine(
		t,
		output,
		`integration_test_step_executions_total`,
		`run_type="post-processing".*status="success".*step="post_processing"`,
		`2`,
	)
	assertMetricLine(
		t,
		output,
		`integration_test_step_executions_total`,
		`run_type="post-processing".*status="error".*step="payment_cancellation"`,
		`1`,
	)
	assertMetricLine(
		t,
		output,
		`integration_test_step_duration_seconds_count`,
		`run_type="post-processing".*status="success".*step="post_processing"`,
		`2`,
	)
	assertMetricLine(
		t,
		output,
		`integration_test_step_items_total`,
		`metric="payment_in_waiting_week_count".*run_type="post-processing".*step="post_processing"`,
		`2`,
	)
	assert.NotContains(t, output, `metric="payment_not_in_waiting_week_count"`)
}
