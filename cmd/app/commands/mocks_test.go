package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/allisson/paidleave/internal/auditreport/domain"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	stateDomain "github.com/allisson/paidleave/internal/state/domain"
	"github.com/allisson/paidleave/internal/step"
)

// MockJobRunner is a mock implementation of JobRunner.
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) RunJob(ctx context.Context, job step.Job) (*step.RunContext, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*step.RunContext), args.Error(1)
}

// MockProcessedChecker is a mock implementation of ProcessedChecker.
type MockProcessedChecker struct {
	mock.Mock
}

func (m *MockProcessedChecker) WasProcessedWithinBusinessDays(
	ctx context.Context,
	runType, metric string,
	businessDays int,
) (bool, error) {
	args := m.Called(ctx, runType, metric, businessDays)
	return args.Bool(0), args.Error(1)
}

// MockStateCounter is a mock implementation of StateCounter.
type MockStateCounter struct {
	mock.Mock
}

func (m *MockStateCounter) CountByState(
	ctx context.Context,
	flowID stateDomain.FlowID,
) (map[stateDomain.StateID]int64, error) {
	args := m.Called(ctx, flowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[stateDomain.StateID]int64), args.Error(1)
}

// MockAuditReportExporter is a mock implementation of AuditReportExporter.
type MockAuditReportExporter struct {
	mock.Mock
}

func (m *MockAuditReportExporter) Export(
	ctx context.Context,
	batchRunID uuid.UUID,
	reportType auditDomain.ReportType,
) (*auditUseCase.ExportResult, error) {
	args := m.Called(ctx, batchRunID, reportType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditUseCase.ExportResult), args.Error(1)
}

// namedStep is a step that does nothing.
type namedStep struct {
	name string
}

func (s namedStep) Name() string { return s.name }

func (s namedStep) RunStep(context.Context, *step.Context) error { return nil }

// MockPubIDResolver is a mock implementation of PubIDResolver.
type MockPubIDResolver struct {
	mock.Mock
}

func (m *MockPubIDResolver) ResolvePubIndividualID(ctx context.Context, text string) (stateDomain.EntityRef, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(stateDomain.EntityRef), args.Error(1)
}
