package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BatchMetrics records batch step executions for operational visibility.
type BatchMetrics interface {
	// RecordStep records one step execution with its status ("success" or "error").
	RecordStep(ctx context.Context, runType, step, status string, duration time.Duration)

	// RecordCounters adds the step's named counters (e.g. "payment_in_waiting_week_count").
	RecordCounters(ctx context.Context, runType, step string, counters map[string]int64)
}

// batchMetrics implements BatchMetrics using OpenTelemetry metrics.
type batchMetrics struct {
	stepCounter   metric.Int64Counter
	durationHisto metric.Float64Histogram
	itemCounter   metric.Int64Counter
}

// NewBatchMetrics creates a new BatchMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names.
func NewBatchMetrics(meterProvider metric.MeterProvider, namespace string) (BatchMetrics, error) {
	meter := meterProvider.Meter(namespace)

	stepCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_step_executions_total", namespace),
		metric.WithDescription("Total number of batch step executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_step_duration_seconds", namespace),
		metric.WithDescription("Duration of batch step executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	itemCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_step_items_total", namespace),
		metric.WithDescription("Items counted by batch steps, labelled by counter name"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create item counter: %w", err)
	}

	return &batchMetrics{
		stepCounter:   stepCounter,
		durationHisto: durationHisto,
		itemCounter:   itemCounter,
	}, nil
}

// RecordStep increments the execution counter and records the duration in seconds.
func (b *batchMetrics) RecordStep(
	ctx context.Context,
	runType, step, status string,
	duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("run_type", runType),
		attribute.String("step", step),
		attribute.String("status", status),
	)
	b.stepCounter.Add(ctx, 1, attrs)
	b.durationHisto.Record(ctx, duration.Seconds(), attrs)
}

// RecordCounters adds every non-zero counter of the step.
func (b *batchMetrics) RecordCounters(ctx context.Context, runType, step string, counters map[string]int64) {
	for name, value := range counters {
		if value == 0 {
			continue
		}
		b.itemCounter.Add(ctx, value,
			metric.WithAttributes(
				attribute.String("run_type", runType),
				attribute.String("step", step),
				attribute.String("metric", name),
			),
		)
	}
}

// NoOpBatchMetrics is a no-op implementation of BatchMetrics for when metrics are disabled.
type NoOpBatchMetrics struct{}

// NewNoOpBatchMetrics creates a no-op BatchMetrics implementation.
func NewNoOpBatchMetrics() BatchMetrics {
	return &NoOpBatchMetrics{}
}

// RecordStep does nothing when metrics are disabled.
func (n *NoOpBatchMetrics) RecordStep(
	ctx context.Context,
	runType, step, status string,
	duration time.Duration,
) {
	// No-op
}

// RecordCounters does nothing when metrics are disabled.
func (n *NoOpBatchMetrics) RecordCounters(ctx context.Context, runType, step string, counters map[string]int64) {
	// No-op
}
