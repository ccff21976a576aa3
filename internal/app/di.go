// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/paidleave/internal/addressvalidation"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	batchrunUseCase "github.com/allisson/paidleave/internal/batchrun/usecase"
	"github.com/allisson/paidleave/internal/cancellation"
	"github.com/allisson/paidleave/internal/config"
	"github.com/allisson/paidleave/internal/database"
	"github.com/allisson/paidleave/internal/http"
	"github.com/allisson/paidleave/internal/joblock"
	"github.com/allisson/paidleave/internal/metrics"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	"github.com/allisson/paidleave/internal/postprocessing"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	"github.com/allisson/paidleave/internal/step"
	"github.com/allisson/paidleave/internal/storage"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// Components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	batchMetrics    metrics.BatchMetrics
	bucketService   storage.BucketService
	writebackBucket storage.Bucket
	reportBucket    storage.Bucket
	redisClient     *redis.Client
	jobLocker       joblock.Locker

	// Repositories
	stateLogRepository    stateUseCase.StateLogRepository
	batchRunRepository    batchrunUseCase.BatchRunRepository
	employeeRepository    paymentUseCase.EmployeeRepository
	claimRepository       paymentUseCase.ClaimRepository
	pubEFTRepository      paymentUseCase.PubEFTRepository
	paymentRepository     paymentUseCase.PaymentRepository
	auditReportRepository auditUseCase.AuditReportRepository
	writebackRepository   writebackUseCase.WritebackRepository

	// Use Cases
	stateLogUseCase    stateUseCase.StateLogUseCase
	batchRunUseCase    batchrunUseCase.BatchRunUseCase
	paymentUseCase     paymentUseCase.PaymentUseCase
	auditReportUseCase auditUseCase.AuditReportUseCase
	writebackUseCase   writebackUseCase.WritebackUseCase
	transmitter        writebackUseCase.Transmitter

	// Steps
	runner                *step.Runner
	jobRunner             *joblock.Runner
	addressValidationStep *addressvalidation.Step
	postProcessingStep    *postprocessing.Step
	cancellationStep      *cancellation.Step

	// Servers
	httpServer *http.Server

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	metricsProviderInit       sync.Once
	batchMetricsInit          sync.Once
	bucketServiceInit         sync.Once
	writebackBucketInit       sync.Once
	reportBucketInit          sync.Once
	jobLockerInit             sync.Once
	stateLogRepositoryInit    sync.Once
	batchRunRepositoryInit    sync.Once
	employeeRepositoryInit    sync.Once
	claimRepositoryInit       sync.Once
	pubEFTRepositoryInit      sync.Once
	paymentRepositoryInit     sync.Once
	auditReportRepositoryInit sync.Once
	writebackRepositoryInit   sync.Once
	stateLogUseCaseInit       sync.Once
	batchRunUseCaseInit       sync.Once
	paymentUseCaseInit        sync.Once
	auditReportUseCaseInit    sync.Once
	writebackUseCaseInit      sync.Once
	transmitterInit           sync.Once
	runnerInit                sync.Once
	jobRunnerInit             sync.Once
	addressValidationStepInit sync.Once
	postProcessingStepInit    sync.Once
	cancellationStepInit      sync.Once
	httpServerInit            sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider. Returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BatchMetrics returns the batch step metrics recorder.
func (c *Container) BatchMetrics() (metrics.BatchMetrics, error) {
	var err error
	c.batchMetricsInit.Do(func() {
		c.batchMetrics, err = c.initBatchMetrics()
		if err != nil {
			c.initErrors["batchMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["batchMetrics"]; exists {
		return nil, storedErr
	}
	return c.batchMetrics, nil
}

// PushMetrics pushes the gathered metrics to the configured Pushgateway under job.
// It does nothing when metrics are disabled or no Pushgateway is configured.
func (c *Container) PushMetrics(ctx context.Context, job string) error {
	if !c.config.MetricsEnabled || c.config.MetricsPushgatewayURL == "" {
		return nil
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return err
	}
	return provider.Push(ctx, c.config.MetricsPushgatewayURL, job)
}

// Runner returns the step runner.
func (c *Container) Runner() (*step.Runner, error) {
	var err error
	c.runnerInit.Do(func() {
		c.runner, err = c.initRunner()
		if err != nil {
			c.initErrors["runner"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["runner"]; exists {
		return nil, storedErr
	}
	return c.runner, nil
}

// HTTPServer returns the operational HTTP server (health, readiness and metrics).
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.writebackBucket != nil {
		if err := c.writebackBucket.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("writeback bucket close: %w", err))
		}
	}

	if c.reportBucket != nil {
		if err := c.reportBucket.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("report bucket close: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis client close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initMetricsProvider creates the Prometheus backed provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBatchMetrics returns a no-op recorder when metrics are disabled.
func (c *Container) initBatchMetrics() (metrics.BatchMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBatchMetrics(), nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for batch metrics: %w", err)
	}

	batchMetrics, err := metrics.NewBatchMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch metrics: %w", err)
	}
	return batchMetrics, nil
}

// initRunner creates the step runner with its dependencies.
func (c *Container) initRunner() (*step.Runner, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for runner: %w", err)
	}

	batchRuns, err := c.BatchRunUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get batch run use case for runner: %w", err)
	}

	batchMetrics, err := c.BatchMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get batch metrics for runner: %w", err)
	}

	return step.NewRunner(txManager, batchRuns, batchMetrics, c.Logger()), nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	return http.NewServer(c.config.ServerHost, c.config.ServerPort, c.Logger(), provider, db), nil
}
