package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/paidleave/internal/joblock"
)

const jobLockPrefix = "paidleave:job-lock:"

// JobLocker returns the job locker. Locks are taken on Redis when REDIS_URL is set and
// always succeed otherwise.
func (c *Container) JobLocker() (joblock.Locker, error) {
	var err error
	c.jobLockerInit.Do(func() {
		c.jobLocker, err = c.initJobLocker()
		if err != nil {
			c.initErrors["jobLocker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["jobLocker"]; exists {
		return nil, storedErr
	}
	return c.jobLocker, nil
}

// JobRunner returns the step runner guarded by the job locker. Batch commands and the
// worker run their jobs through it.
func (c *Container) JobRunner() (*joblock.Runner, error) {
	var err error
	c.jobRunnerInit.Do(func() {
		c.jobRunner, err = c.initJobRunner()
		if err != nil {
			c.initErrors["jobRunner"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["jobRunner"]; exists {
		return nil, storedErr
	}
	return c.jobRunner, nil
}

func (c *Container) initJobLocker() (joblock.Locker, error) {
	if c.config.RedisURL == "" {
		return joblock.NewNoopLocker(), nil
	}

	opts, err := redis.ParseURL(c.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	c.redisClient = redis.NewClient(opts)
	return joblock.NewRedisLocker(c.redisClient, jobLockPrefix), nil
}

func (c *Container) initJobRunner() (*joblock.Runner, error) {
	runner, err := c.Runner()
	if err != nil {
		return nil, fmt.Errorf("failed to get runner for job runner: %w", err)
	}

	locker, err := c.JobLocker()
	if err != nil {
		return nil, fmt.Errorf("failed to get job locker: %w", err)
	}

	return joblock.NewRunner(runner, locker, c.config.JobLockTTL, c.Logger()), nil
}
