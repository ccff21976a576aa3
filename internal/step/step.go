// Package step gives every pipeline stage a uniform execution contract: the stage runs in
// one transaction, its counters are merged into the enclosing batch run, and failures are
// logged, rolled back and returned to the caller.
package step

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"

	batchrunDomain "github.com/allisson/paidleave/internal/batchrun/domain"
	"github.com/allisson/paidleave/internal/database"
)

// Step is one unit of pipeline work.
type Step interface {
	// Name identifies the step in logs, metrics and error messages.
	Name() string

	// RunStep executes the business logic. ctx carries the step transaction.
	RunStep(ctx context.Context, sc *Context) error
}

// Metrics is a set of named counters owned by one step execution.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMetrics creates an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]int64)}
}

// Increment adds one to the named counter.
func (m *Metrics) Increment(name string) {
	m.IncrementBy(name, 1)
}

// IncrementBy adds delta to the named counter.
func (m *Metrics) IncrementBy(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Get returns the value of the named counter, zero when never incremented.
func (m *Metrics) Get(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counters)
}

// Merge adds every counter of other into m.
func (m *Metrics) Merge(other *Metrics) {
	for name, value := range other.Snapshot() {
		m.IncrementBy(name, value)
	}
}

// Context is the explicit run context handed to a step: the enclosing batch run, a
// logger scoped to the step and the step's own counters.
type Context struct {
	Run     *batchrunDomain.BatchRun
	Logger  *slog.Logger
	Metrics *Metrics

	txManager database.TxManager
}

// NewContext creates a step context. Runner builds one per execution; tests may build
// their own to call RunStep directly.
func NewContext(run *batchrunDomain.BatchRun, logger *slog.Logger, txManager database.TxManager) *Context {
	return &Context{
		Run:       run,
		Logger:    logger,
		Metrics:   NewMetrics(),
		txManager: txManager,
	}
}

// BatchRunID returns the id of the enclosing run, or nil outside of one.
func (c *Context) BatchRunID() *uuid.UUID {
	if c.Run == nil {
		return nil
	}
	id := c.Run.ID
	return &id
}

// WithLogEntrySession runs fn in a transaction independent of the step transaction, so
// its writes survive a rollback of the step.
func (c *Context) WithLogEntrySession(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.txManager.WithNewTx(ctx, fn)
}
