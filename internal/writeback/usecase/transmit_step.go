package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/allisson/paidleave/internal/step"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
)

const (
	// TransmitStepName identifies the writeback transmission step in logs and metrics.
	TransmitStepName = "case-writeback-transmit"

	// CounterSent counts writeback rows delivered and marked sent in a run.
	CounterSent = "writeback_sent_count"

	// CounterDeliveryFailed counts rejected deliveries recorded as failed attempts.
	CounterDeliveryFailed = "writeback_delivery_failed_count"
)

// TransmitStep delivers unsent writeback rows within a batch run so the run report
// records how many rows were sent.
type TransmitStep struct {
	writebacks  WritebackUseCase
	transmitter Transmitter
}

// NewTransmitStep creates a TransmitStep.
func NewTransmitStep(writebacks WritebackUseCase, transmitter Transmitter) *TransmitStep {
	return &TransmitStep{writebacks: writebacks, transmitter: transmitter}
}

// Name returns TransmitStepName.
func (s *TransmitStep) Name() string { return TransmitStepName }

// RunStep transmits claimed batches until no unsent row is left. A rejected delivery is
// recorded in its own transaction before the step fails and rolls back.
func (s *TransmitStep) RunStep(ctx context.Context, sc *step.Context) error {
	total := 0
	for {
		result, err := s.writebacks.Transmit(ctx, s.transmitter, sc.BatchRunID())
		if err != nil {
			s.recordFailure(ctx, sc, err)
			return err
		}
		if result.Sent == 0 {
			break
		}

		total += result.Sent
		sc.Metrics.IncrementBy(CounterSent, int64(result.Sent))
		sc.Logger.Debug("writeback batch transmitted", slog.Int("sent", result.Sent))
	}

	sc.Logger.Info("writeback transmitted", slog.Int("sent", total))
	return nil
}

func (s *TransmitStep) recordFailure(ctx context.Context, sc *step.Context, err error) {
	var delivery *writebackDomain.DeliveryError
	if !errors.As(err, &delivery) {
		return
	}

	recordErr := sc.WithLogEntrySession(ctx, func(ctx context.Context) error {
		_, err := s.writebacks.RecordFailedAttempt(ctx, delivery, sc.BatchRunID())
		return err
	})
	if recordErr != nil {
		sc.Logger.Error("failed to record writeback attempt", slog.Any("error", recordErr))
		return
	}
	sc.Metrics.Increment(CounterDeliveryFailed)
}
