package service

import (
	"context"
	"sync"
	"time"

	dErrors "attestry/pkg/domain-errors"
)

// StoreTx provides the serialization boundary for registry mutations.
// Every state-mutating operation runs inside RunInTx, so each call is
// atomic with respect to all others: preconditions, mutation, and event
// emission happen under one boundary. Implementations may wrap a database
// transaction or, in-memory, a single mutex.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a registry transaction. Every operation is a
// bounded synchronous state transition, so anything near this limit is
// stuck, not slow.
const defaultTxTimeout = 5 * time.Second

// inMemoryTx serializes mutations behind a single mutex. The registry's
// write set is small keyed records, so one writer at a time is the simplest
// arrangement that gives the required total ordering.
type inMemoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func newInMemoryTx() *inMemoryTx {
	return &inMemoryTx{timeout: defaultTxTimeout}
}

func (t *inMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}
