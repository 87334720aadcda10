package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type mockTxKey struct{}

// MockPostgresClient is a transaction manager over the in-memory stores.
// Transactions are serialized, which stands in for the row locks taken in postgres,
// and a failed transaction restores every registered store to its state at begin.
type MockPostgresClient struct {
	mu        sync.Mutex
	logger    *logger.Logger
	stores    []snapshotter
	committed atomic.Int64
	rolled    atomic.Int64
}

// NewMockPostgresClient creates a new mock postgres client guarding the given stores
func NewMockPostgresClient(logger *logger.Logger, stores ...snapshotter) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
		stores: stores,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if InTx(ctx) {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	states := make([]any, len(c.stores))
	for i, s := range c.stores {
		states[i] = s.snapshot()
	}

	err := fn(context.WithValue(ctx, mockTxKey{}, true))
	if err != nil {
		for i, s := range c.stores {
			s.restore(states[i])
		}
		c.rolled.Add(1)
		return err
	}
	c.committed.Add(1)
	return nil
}

// Commits returns the number of committed top-level transactions
func (c *MockPostgresClient) Commits() int64 {
	return c.committed.Load()
}

// Rollbacks returns the number of rolled back top-level transactions
func (c *MockPostgresClient) Rollbacks() int64 {
	return c.rolled.Load()
}

// InTx reports whether ctx carries a mock transaction
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(mockTxKey{}).(bool)
	return v
}

func requireTx(ctx context.Context, op string) error {
	if InTx(ctx) {
		return nil
	}
	return ierr.NewError("operation requires a transaction").
		WithHintf("%s must run inside a transaction", op).
		Mark(ierr.ErrSystem)
}
