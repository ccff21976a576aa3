package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/allisson/paidleave/internal/addressvalidation"
	auditUseCase "github.com/allisson/paidleave/internal/auditreport/usecase"
	"github.com/allisson/paidleave/internal/cancellation"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	"github.com/allisson/paidleave/internal/postprocessing"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// AddressValidationStep returns the step that moves received payments into the pipeline.
func (c *Container) AddressValidationStep() (*addressvalidation.Step, error) {
	var err error
	c.addressValidationStepInit.Do(func() {
		c.addressValidationStep, err = c.initAddressValidationStep()
		if err != nil {
			c.initErrors["addressValidationStep"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["addressValidationStep"]; exists {
		return nil, storedErr
	}
	return c.addressValidationStep, nil
}

// PostProcessingStep returns the post-processing step with the default processors.
func (c *Container) PostProcessingStep() (*postprocessing.Step, error) {
	var err error
	c.postProcessingStepInit.Do(func() {
		c.postProcessingStep, err = c.initPostProcessingStep()
		if err != nil {
			c.initErrors["postProcessingStep"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["postProcessingStep"]; exists {
		return nil, storedErr
	}
	return c.postProcessingStep, nil
}

// CancellationStep returns the payment cancellation step.
func (c *Container) CancellationStep() (*cancellation.Step, error) {
	var err error
	c.cancellationStepInit.Do(func() {
		c.cancellationStep, err = c.initCancellationStep()
		if err != nil {
			c.initErrors["cancellationStep"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cancellationStep"]; exists {
		return nil, storedErr
	}
	return c.cancellationStep, nil
}

func (c *Container) initAddressValidationStep() (*addressvalidation.Step, error) {
	stateLogs, payments, audits, writebacks, err := c.stepDependencies()
	if err != nil {
		return nil, fmt.Errorf("failed to get dependencies for address validation step: %w", err)
	}

	validator := addressvalidation.NewRequiredFieldsValidator()
	return addressvalidation.NewStep(stateLogs, payments, audits, writebacks, validator), nil
}

func (c *Container) initPostProcessingStep() (*postprocessing.Step, error) {
	maxWeekly, err := decimal.NewFromString(c.config.MaxWeeklyBenefitAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid max weekly benefit amount: %w", err)
	}

	processors, err := postprocessing.NewDefaultProcessors(postprocessing.Config{
		WaitingWeekOffsetDays:  c.config.WaitingWeekOffsetDays,
		MaxWeeklyBenefitAmount: maxWeekly,
		MaxLeaveDurationDays:   c.config.MaxLeaveDurationDays,
		BenefitYearWeeks:       c.config.BenefitYearWeeks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create post-processing processors: %w", err)
	}

	stateLogs, payments, audits, writebacks, err := c.stepDependencies()
	if err != nil {
		return nil, fmt.Errorf("failed to get dependencies for post-processing step: %w", err)
	}

	return postprocessing.NewStep(stateLogs, payments, audits, writebacks, processors), nil
}

func (c *Container) initCancellationStep() (*cancellation.Step, error) {
	stateLogs, payments, audits, writebacks, err := c.stepDependencies()
	if err != nil {
		return nil, fmt.Errorf("failed to get dependencies for cancellation step: %w", err)
	}

	return cancellation.NewStep(stateLogs, payments, audits, writebacks), nil
}

// stepDependencies returns the use cases every payment step writes through.
func (c *Container) stepDependencies() (
	stateUseCase.StateLogUseCase,
	paymentUseCase.PaymentUseCase,
	auditUseCase.AuditReportUseCase,
	writebackUseCase.WritebackUseCase,
	error,
) {
	stateLogs, err := c.StateLogUseCase()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	payments, err := c.PaymentUseCase()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	audits, err := c.AuditReportUseCase()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	writebacks, err := c.WritebackUseCase()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return stateLogs, payments, audits, writebacks, nil
}
