package app

import (
	"fmt"

	paymentRepository "github.com/allisson/paidleave/internal/payment/repository"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
)

// EmployeeRepository returns the employee repository based on database driver.
func (c *Container) EmployeeRepository() (paymentUseCase.EmployeeRepository, error) {
	var err error
	c.employeeRepositoryInit.Do(func() {
		c.employeeRepository, err = c.initEmployeeRepository()
		if err != nil {
			c.initErrors["employeeRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["employeeRepository"]; exists {
		return nil, storedErr
	}
	return c.employeeRepository, nil
}

// ClaimRepository returns the claim repository based on database driver.
func (c *Container) ClaimRepository() (paymentUseCase.ClaimRepository, error) {
	var err error
	c.claimRepositoryInit.Do(func() {
		c.claimRepository, err = c.initClaimRepository()
		if err != nil {
			c.initErrors["claimRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["claimRepository"]; exists {
		return nil, storedErr
	}
	return c.claimRepository, nil
}

// PubEFTRepository returns the PUB EFT repository based on database driver.
func (c *Container) PubEFTRepository() (paymentUseCase.PubEFTRepository, error) {
	var err error
	c.pubEFTRepositoryInit.Do(func() {
		c.pubEFTRepository, err = c.initPubEFTRepository()
		if err != nil {
			c.initErrors["pubEFTRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["pubEFTRepository"]; exists {
		return nil, storedErr
	}
	return c.pubEFTRepository, nil
}

// PaymentRepository returns the payment repository based on database driver.
func (c *Container) PaymentRepository() (paymentUseCase.PaymentRepository, error) {
	var err error
	c.paymentRepositoryInit.Do(func() {
		c.paymentRepository, err = c.initPaymentRepository()
		if err != nil {
			c.initErrors["paymentRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["paymentRepository"]; exists {
		return nil, storedErr
	}
	return c.paymentRepository, nil
}

// PaymentUseCase returns the payment use case.
func (c *Container) PaymentUseCase() (paymentUseCase.PaymentUseCase, error) {
	var err error
	c.paymentUseCaseInit.Do(func() {
		c.paymentUseCase, err = c.initPaymentUseCase()
		if err != nil {
			c.initErrors["paymentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["paymentUseCase"]; exists {
		return nil, storedErr
	}
	return c.paymentUseCase, nil
}

func (c *Container) initEmployeeRepository() (paymentUseCase.EmployeeRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for employee repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return paymentRepository.NewPostgreSQLEmployeeRepository(db), nil
	case "mysql":
		return paymentRepository.NewMySQLEmployeeRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initClaimRepository() (paymentUseCase.ClaimRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for claim repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return paymentRepository.NewPostgreSQLClaimRepository(db), nil
	case "mysql":
		return paymentRepository.NewMySQLClaimRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPubEFTRepository() (paymentUseCase.PubEFTRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for pub eft repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return paymentRepository.NewPostgreSQLPubEFTRepository(db), nil
	case "mysql":
		return paymentRepository.NewMySQLPubEFTRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPaymentRepository() (paymentUseCase.PaymentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for payment repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return paymentRepository.NewPostgreSQLPaymentRepository(db), nil
	case "mysql":
		return paymentRepository.NewMySQLPaymentRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPaymentUseCase() (paymentUseCase.PaymentUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for payment use case: %w", err)
	}

	employeeRepo, err := c.EmployeeRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get employee repository for payment use case: %w", err)
	}

	claimRepo, err := c.ClaimRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get claim repository for payment use case: %w", err)
	}

	pubEFTRepo, err := c.PubEFTRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get pub eft repository for payment use case: %w", err)
	}

	paymentRepo, err := c.PaymentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment repository for payment use case: %w", err)
	}

	stateLogs, err := c.StateLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get state log use case for payment use case: %w", err)
	}

	return paymentUseCase.NewPaymentUseCase(
		txManager,
		employeeRepo,
		claimRepo,
		pubEFTRepo,
		paymentRepo,
		stateLogs,
		c.Logger(),
	), nil
}
