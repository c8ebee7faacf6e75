/*
Package cache keeps off-chain copies of shared ledger objects.

Every copy is wrapped in a Handle. All callers sharing a handle see the same
value. Locks are only ever tried: an operation finding the handle locked fails
with errors.ErrBusy instead of waiting, so that two operations on the same
object never wait on each other.

An update holds the exclusive lock for the whole unit of work, usually
fetching ledger state, building and submitting a transaction and applying its
effects. When the unit fails or its context is cancelled the copy may no
longer match the ledger. The handle is then marked stale and reloaded on next
access. The ledger state itself is never rolled back.
*/
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/iov-one/idgov/errors"
)

// Loader reads the current value of a cached object.
type Loader[T any] func(ctx context.Context) (T, error)

// Handle is a shared reference to a cached value.
type Handle[T any] struct {
	mu    sync.RWMutex
	value T
	stale atomic.Bool
	load  Loader[T]
}

// NewHandle returns a handle holding value. load is used to refresh the value
// once the handle is stale.
func NewHandle[T any](value T, load Loader[T]) *Handle[T] {
	return &Handle[T]{value: value, load: load}
}

// Stale returns true if the value must be reloaded before use.
func (h *Handle[T]) Stale() bool {
	return h.stale.Load()
}

// Invalidate marks the value stale.
func (h *Handle[T]) Invalidate() {
	h.stale.Store(true)
}

// Read calls fn with the value under a shared lock. A stale value is
// reloaded first, which requires the exclusive lock.
func (h *Handle[T]) Read(ctx context.Context, fn func(T) error) error {
	if h.stale.Load() {
		if !h.mu.TryLock() {
			return errors.ErrBusy.New("handle is locked")
		}
		defer h.mu.Unlock()
		if err := h.reload(ctx); err != nil {
			return err
		}
		return fn(h.value)
	}

	if !h.mu.TryRLock() {
		return errors.ErrBusy.New("handle is being updated")
	}
	defer h.mu.RUnlock()
	return fn(h.value)
}

// Update calls fn with the value under the exclusive lock. fn may modify the
// value in place. If fn fails or ctx is done when it returns, the value is
// marked stale.
func (h *Handle[T]) Update(ctx context.Context, fn func(context.Context, T) error) error {
	if !h.mu.TryLock() {
		return errors.ErrBusy.New("handle is locked")
	}
	defer h.mu.Unlock()

	if h.stale.Load() {
		if err := h.reload(ctx); err != nil {
			return err
		}
	}
	err := fn(ctx, h.value)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		h.stale.Store(true)
	}
	return err
}

// reload must be called with the exclusive lock held.
func (h *Handle[T]) reload(ctx context.Context) error {
	if h.load == nil {
		return errors.ErrState.New("stale handle cannot be reloaded")
	}
	value, err := h.load(ctx)
	if err != nil {
		return err
	}
	h.value = value
	h.stale.Store(false)
	return nil
}
