// Package joblock keeps two processes from running the same batch job at once. Locks
// live in Redis so schedulers on different hosts share them.
package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	apperrors "github.com/allisson/paidleave/internal/errors"
)

var (
	// ErrNotObtained indicates another process holds the job's lock.
	ErrNotObtained = apperrors.Wrap(apperrors.ErrConflict, "job lock held by another process")

	// ErrLockLost indicates the lock expired or was taken over while the job ran.
	ErrLockLost = apperrors.Wrap(apperrors.ErrConflict, "job lock lost")
)

// Lock is a held job lock.
type Lock interface {
	// Refresh extends the lock by ttl. Returns ErrLockLost when the lock is no longer held.
	Refresh(ctx context.Context, ttl time.Duration) error
	// Release gives the lock up. Releasing an expired lock is not an error.
	Release(ctx context.Context) error
}

// Locker obtains job locks.
type Locker interface {
	// Obtain takes the lock for key without waiting. Returns ErrNotObtained when it is held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type redisLocker struct {
	client *redislock.Client
	prefix string
}

// NewRedisLocker creates a Locker backed by client. Keys are stored under prefix.
func NewRedisLocker(client redislock.RedisClient, prefix string) Locker {
	return &redisLocker{client: redislock.New(client), prefix: prefix}
}

func (l *redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperrors.Wrapf(ErrNotObtained, "key %s", key)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRetryable, "failed to obtain job lock: "+err.Error())
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Refresh(ctx context.Context, ttl time.Duration) error {
	err := l.lock.Refresh(ctx, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockLost
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to refresh job lock")
	}
	return nil
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

type noopLocker struct{}

// NewNoopLocker creates a Locker whose locks always succeed. Used when no Redis is
// configured.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Refresh(context.Context, time.Duration) error { return nil }

func (noopLock) Release(context.Context) error { return nil }
