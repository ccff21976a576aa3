// Package mocks provides test doubles for the database package.
package mocks

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a testify mock of database.TxManager. When an expectation returns
// nil the callback is executed so the logic inside the transaction is exercised.
type MockTxManager struct {
	mock.Mock
}

// NewMockTxManager creates a MockTxManager whose expectations are asserted on cleanup.
func NewMockTxManager(t *testing.T) *MockTxManager {
	m := &MockTxManager{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// WithTx mocks the WithTx method of TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// WithNewTx mocks the WithNewTx method of TxManager.
func (m *MockTxManager) WithNewTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// NopTxManager runs callbacks directly and counts how often each method was used.
type NopTxManager struct {
	WithTxCalls    atomic.Int64
	WithNewTxCalls atomic.Int64
}

// WithTx runs fn without a transaction.
func (n *NopTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	n.WithTxCalls.Add(1)
	return fn(ctx)
}

// WithNewTx runs fn without a transaction.
func (n *NopTxManager) WithNewTx(ctx context.Context, fn func(ctx context.Context) error) error {
	n.WithNewTxCalls.Add(1)
	return fn(ctx)
}
