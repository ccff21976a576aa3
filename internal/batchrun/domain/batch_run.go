// Package domain defines batch runs, the durable identity of every pipeline invocation.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/paidleave/internal/errors"
)

// Status is the lifecycle status of a batch run.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// IsFinal reports whether s is a valid completion status.
func (s Status) IsFinal() bool {
	return s == StatusSuccess || s == StatusError
}

var (
	// ErrBatchRunNotFound indicates the batch run does not exist.
	ErrBatchRunNotFound = apperrors.Wrap(apperrors.ErrNotFound, "batch run not found")

	// ErrBatchRunAlreadyCompleted indicates a second completion of the same run.
	ErrBatchRunAlreadyCompleted = apperrors.Wrap(apperrors.ErrInvalidInput, "batch run already completed")

	// ErrInvalidStatus indicates a completion with a non-final status.
	ErrInvalidStatus = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid batch run completion status")
)

// BatchRun is one tracked invocation of a pipeline stage. It is created in progress and
// mutated exactly once at completion.
type BatchRun struct {
	ID            uuid.UUID
	Source        string
	RunType       string
	Status        Status
	MetricsReport map[string]int64
	StartedAt     time.Time
	EndedAt       *time.Time
}

// Completed reports whether the run has already been completed.
func (b *BatchRun) Completed() bool {
	return b.EndedAt != nil
}

// Metric returns the counter recorded for name, zero when absent.
func (b *BatchRun) Metric(name string) int64 {
	return b.MetricsReport[name]
}
