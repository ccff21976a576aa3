// Package transmitter delivers staged writeback rows to the case system.
package transmitter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"gocloud.dev/blob"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/paidleave/internal/errors"
	"github.com/allisson/paidleave/internal/storage"
	writebackDomain "github.com/allisson/paidleave/internal/writeback/domain"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

const csvContentType = "text/csv"

var csvHeader = []string{"payment_id", "transaction_status", "transaction_status_description", "created_at"}

// BlobCSVTransmitter writes each transmission as one CSV file to a bucket the case
// system picks files up from.
type BlobCSVTransmitter struct {
	bucket storage.Bucket
	prefix string
	now    func() time.Time
}

// NewBlobCSVTransmitter creates a transmitter writing under prefix.
func NewBlobCSVTransmitter(bucket storage.Bucket, prefix string) *BlobCSVTransmitter {
	return &BlobCSVTransmitter{
		bucket: bucket,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Transmit uploads <prefix>/<timestamp>-<first row id>-case-writeback.csv. Nothing is
// uploaded for an empty slice.
func (b *BlobCSVTransmitter) Transmit(ctx context.Context, details []*writebackDomain.WritebackDetail) error {
	if len(details) == 0 {
		return nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return apperrors.Wrap(err, "failed to write writeback header")
	}
	for _, detail := range details {
		record := []string{
			detail.PaymentID.String(),
			string(detail.TransactionStatus),
			detail.TransactionStatus.Description(),
			detail.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return apperrors.Wrap(err, "failed to write writeback record")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.Wrap(err, "failed to flush writeback file")
	}

	if err := b.bucket.WriteAll(ctx, b.Key(details[0]), buf.Bytes(), &blob.WriterOptions{ContentType: csvContentType}); err != nil {
		return apperrors.Wrap(err, "failed to upload writeback file")
	}
	return nil
}

// Key is the object key of a transmission starting with first. Rows are claimed by one
// transmission only, so chunks written within the same second get distinct keys.
func (b *BlobCSVTransmitter) Key(first *writebackDomain.WritebackDetail) string {
	return fmt.Sprintf(
		"%s/%s-%s-case-writeback.csv",
		b.prefix,
		b.now().Format("2006-01-02-15-04-05"),
		first.ID,
	)
}

// LogTransmitter logs every row instead of delivering it. Used when no bucket is configured.
type LogTransmitter struct {
	logger *slog.Logger
}

// NewLogTransmitter creates a LogTransmitter.
func NewLogTransmitter(logger *slog.Logger) *LogTransmitter {
	return &LogTransmitter{logger: logger}
}

// Transmit logs each row.
func (l *LogTransmitter) Transmit(ctx context.Context, details []*writebackDomain.WritebackDetail) error {
	for _, detail := range details {
		l.logger.InfoContext(ctx, "case system writeback",
			slog.String("payment_id", detail.PaymentID.String()),
			slog.String("transaction_status", string(detail.TransactionStatus)),
		)
	}
	return nil
}

// RateLimitedTransmitter hands rows to next in chunks of at most burst rows, waiting
// on a token bucket so the case system sees no more than rps rows per second.
type RateLimitedTransmitter struct {
	next    writebackUseCase.Transmitter
	limiter *rate.Limiter
	burst   int
}

// NewRateLimitedTransmitter wraps next. A non-positive burst is treated as 1.
func NewRateLimitedTransmitter(next writebackUseCase.Transmitter, rps float64, burst int) *RateLimitedTransmitter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedTransmitter{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		burst:   burst,
	}
}

// Transmit stops at the first failing chunk or when ctx is cancelled while waiting.
func (r *RateLimitedTransmitter) Transmit(ctx context.Context, details []*writebackDomain.WritebackDetail) error {
	for start := 0; start < len(details); start += r.burst {
		end := min(start+r.burst, len(details))
		chunk := details[start:end]
		if err := r.limiter.WaitN(ctx, len(chunk)); err != nil {
			return apperrors.Wrap(err, "writeback rate limiter")
		}
		if err := r.next.Transmit(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}
