package app

import (
	"context"
	"fmt"

	"gocloud.dev/blob"

	auditRepository "github.com/allisson/paidleave/internal/auditreport/repository"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	"github.com/allisson/paidleave/internal/storage"
	writebackRepository "github.com/allisson/paidleave/internal/writeback/repository"
	"github.com/allisson/paidleave/internal/writeback/transmitter"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

const writebackKeyPrefix = "case-writeback"

// BucketService returns the blob bucket service.
func (c *Container) BucketService() storage.BucketService {
	c.bucketServiceInit.Do(func() {
		c.bucketService = storage.NewBucketService()
	})
	return c.bucketService
}

// WritebackBucket returns the bucket writeback files are uploaded to.
func (c *Container) WritebackBucket() (storage.Bucket, error) {
	var err error
	c.writebackBucketInit.Do(func() {
		c.writebackBucket, err = c.BucketService().OpenBucket(context.Background(), c.config.WritebackBucketURL)
		if err != nil {
			c.initErrors["writebackBucket"] = fmt.Errorf("failed to open writeback bucket: %w", err)
		}
	})
	if storedErr, exists := c.initErrors["writebackBucket"]; exists {
		return nil, storedErr
	}
	return c.writebackBucket, nil
}

// ReportBucket returns the bucket audit report workbooks are uploaded to.
func (c *Container) ReportBucket() (storage.Bucket, error) {
	var err error
	c.reportBucketInit.Do(func() {
		c.reportBucket, err = c.BucketService().OpenBucket(context.Background(), c.config.AuditReportBucketURL)
		if err != nil {
			c.initErrors["reportBucket"] = fmt.Errorf("failed to open report bucket: %w", err)
		}
	})
	if storedErr, exists := c.initErrors["reportBucket"]; exists {
		return nil, storedErr
	}
	return c.reportBucket, nil
}

// AuditReportRepository returns the audit report repository based on database driver.
func (c *Container) AuditReportRepository() (auditUseCase.AuditReportRepository, error) {
	var err error
	c.auditReportRepositoryInit.Do(func() {
		c.auditReportRepository, err = c.initAuditReportRepository()
		if err != nil {
			c.initErrors["auditReportRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditReportRepository"]; exists {
		return nil, storedErr
	}
	return c.auditReportRepository, nil
}

// WritebackRepository returns the writeback repository based on database driver.
func (c *Container) WritebackRepository() (writebackUseCase.WritebackRepository, error) {
	var err error
	c.writebackRepositoryInit.Do(func() {
		c.writebackRepository, err = c.initWritebackRepository()
		if err != nil {
			c.initErrors["writebackRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["writebackRepository"]; exists {
		return nil, storedErr
	}
	return c.writebackRepository, nil
}

// AuditReportUseCase returns the audit report use case.
func (c *Container) AuditReportUseCase() (auditUseCase.AuditReportUseCase, error) {
	var err error
	c.auditReportUseCaseInit.Do(func() {
		c.auditReportUseCase, err = c.initAuditReportUseCase()
		if err != nil {
			c.initErrors["auditReportUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditReportUseCase"]; exists {
		return nil, storedErr
	}
	return c.auditReportUseCase, nil
}

// WritebackUseCase returns the writeback use case.
func (c *Container) WritebackUseCase() (writebackUseCase.WritebackUseCase, error) {
	var err error
	c.writebackUseCaseInit.Do(func() {
		c.writebackUseCase, err = c.initWritebackUseCase()
		if err != nil {
			c.initErrors["writebackUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["writebackUseCase"]; exists {
		return nil, storedErr
	}
	return c.writebackUseCase, nil
}

// Transmitter returns the rate limited transmitter uploading writeback CSV files.
func (c *Container) Transmitter() (writebackUseCase.Transmitter, error) {
	var err error
	c.transmitterInit.Do(func() {
		c.transmitter, err = c.initTransmitter()
		if err != nil {
			c.initErrors["transmitter"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["transmitter"]; exists {
		return nil, storedErr
	}
	return c.transmitter, nil
}

// DryRunTransmitter returns a transmitter that only logs the rows it would send.
func (c *Container) DryRunTransmitter() writebackUseCase.Transmitter {
	return transmitter.NewLogTransmitter(c.Logger())
}

func (c *Container) initAuditReportRepository() (auditUseCase.AuditReportRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit report repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return auditRepository.NewPostgreSQLAuditReportRepository(db), nil
	case "mysql":
		return auditRepository.NewMySQLAuditReportRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initWritebackRepository() (writebackUseCase.WritebackRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for writeback repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return writebackRepository.NewPostgreSQLWritebackRepository(db), nil
	case "mysql":
		return writebackRepository.NewMySQLWritebackRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditReportUseCase opens the report bucket lazily so staging never needs it.
func (c *Container) initAuditReportUseCase() (auditUseCase.AuditReportUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for audit report use case: %w", err)
	}

	repo, err := c.AuditReportRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit report repository for audit report use case: %w", err)
	}

	return auditUseCase.NewAuditReportUseCase(txManager, repo, &lazyBucket{open: c.ReportBucket}, c.Logger()), nil
}

func (c *Container) initWritebackUseCase() (writebackUseCase.WritebackUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for writeback use case: %w", err)
	}

	repo, err := c.WritebackRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get writeback repository for writeback use case: %w", err)
	}

	stateLogs, err := c.StateLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get state log use case for writeback use case: %w", err)
	}

	return writebackUseCase.NewWritebackUseCase(
		writebackUseCase.Config{BatchSize: c.config.WritebackBatchSize},
		txManager,
		repo,
		stateLogs,
		c.Logger(),
	), nil
}

func (c *Container) initTransmitter() (writebackUseCase.Transmitter, error) {
	bucket, err := c.WritebackBucket()
	if err != nil {
		return nil, err
	}

	return transmitter.NewRateLimitedTransmitter(
		transmitter.NewBlobCSVTransmitter(bucket, writebackKeyPrefix),
		c.config.WritebackRateLimitPerSec,
		c.config.WritebackRateLimitBurst,
	), nil
}

// lazyBucket opens the underlying bucket on first write or read. The container closes it.
type lazyBucket struct {
	open func() (storage.Bucket, error)
}

func (l *lazyBucket) WriteAll(ctx context.Context, key string, p []byte, opts *blob.WriterOptions) error {
	bucket, err := l.open()
	if err != nil {
		return err
	}
	return bucket.WriteAll(ctx, key, p, opts)
}

func (l *lazyBucket) ReadAll(ctx context.Context, key string) ([]byte, error) {
	bucket, err := l.open()
	if err != nil {
		return nil, err
	}
	return bucket.ReadAll(ctx, key)
}

func (l *lazyBucket) Close() error { return nil }
