package app

import (
	"fmt"

	batchrunRepository "github.com/allisson/paidleave/internal/batchrun/repository"
	batchrunUseCase "github.com/allisson/paidleave/internal/batchrun/usecase"
	stateRepository "github.com/allisson/paidleave/internal/state/repository"
	stateUseCase "github.com/allisson/paidleave/internal/state/usecase"
)

// StateLogRepository returns the state log repository based on database driver.
func (c *Container) StateLogRepository() (stateUseCase.StateLogRepository, error) {
	var err error
	c.stateLogRepositoryInit.Do(func() {
		c.stateLogRepository, err = c.initStateLogRepository()
		if err != nil {
			c.initErrors["stateLogRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stateLogRepository"]; exists {
		return nil, storedErr
	}
	return c.stateLogRepository, nil
}

// BatchRunRepository returns the batch run repository based on database driver.
func (c *Container) BatchRunRepository() (batchrunUseCase.BatchRunRepository, error) {
	var err error
	c.batchRunRepositoryInit.Do(func() {
		c.batchRunRepository, err = c.initBatchRunRepository()
		if err != nil {
			c.initErrors["batchRunRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["batchRunRepository"]; exists {
		return nil, storedErr
	}
	return c.batchRunRepository, nil
}

// StateLogUseCase returns the state log use case.
func (c *Container) StateLogUseCase() (stateUseCase.StateLogUseCase, error) {
	var err error
	c.stateLogUseCaseInit.Do(func() {
		c.stateLogUseCase, err = c.initStateLogUseCase()
		if err != nil {
			c.initErrors["stateLogUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stateLogUseCase"]; exists {
		return nil, storedErr
	}
	return c.stateLogUseCase, nil
}

// BatchRunUseCase returns the batch run use case.
func (c *Container) BatchRunUseCase() (batchrunUseCase.BatchRunUseCase, error) {
	var err error
	c.batchRunUseCaseInit.Do(func() {
		c.batchRunUseCase, err = c.initBatchRunUseCase()
		if err != nil {
			c.initErrors["batchRunUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["batchRunUseCase"]; exists {
		return nil, storedErr
	}
	return c.batchRunUseCase, nil
}

func (c *Container) initStateLogRepository() (stateUseCase.StateLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for state log repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return stateRepository.NewPostgreSQLStateLogRepository(db), nil
	case "mysql":
		return stateRepository.NewMySQLStateLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initBatchRunRepository() (batchrunUseCase.BatchRunRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for batch run repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return batchrunRepository.NewPostgreSQLBatchRunRepository(db), nil
	case "mysql":
		return batchrunRepository.NewMySQLBatchRunRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initStateLogUseCase() (stateUseCase.StateLogUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for state log use case: %w", err)
	}

	repo, err := c.StateLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get state log repository for state log use case: %w", err)
	}

	return stateUseCase.NewStateLogUseCase(txManager, repo, c.Logger()), nil
}

func (c *Container) initBatchRunUseCase() (batchrunUseCase.BatchRunUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for batch run use case: %w", err)
	}

	repo, err := c.BatchRunRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get batch run repository for batch run use case: %w", err)
	}

	return batchrunUseCase.NewBatchRunUseCase(txManager, repo, c.config.Location(), c.Logger()), nil
}
