// Package waitable provides a one-shot completion handle for a single pending
// asynchronous operation. A Waitable settles exactly once, either fulfilled
// with a value or rejected with a reason, and any number of observers may
// wait on it concurrently without consuming the outcome.
package waitable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Waitable.
type State int32

// Supported states. A Waitable only ever moves out of StatePending.
const (
	StatePending State = iota
	StateFulfilled
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrInvalidState is returned when a settled Waitable is resolved or rejected again.
	ErrInvalidState = errors.New("invalid waitable state")
	// ErrRejected is stored as the reason when Reject is called with a nil error.
	ErrRejected = errors.New("waitable rejected")
	// ErrPanicked wraps a panic recovered from a function launched with Go.
	ErrPanicked = errors.New("waitable operation panicked")
)

var (
	nextID    atomic.Uint64
	settleSeq atomic.Uint64
)

// Waitable wraps a single pending operation. The zero value is not usable;
// construct one with New or Go.
type Waitable[T any] struct {
	id      uint64
	payload any
	done    chan struct{}

	mu     sync.Mutex
	state  atomic.Int32
	seq    uint64
	value  T
	reason error
}

// New creates a pending Waitable carrying caller-defined payload metadata.
func New[T any](payload any) *Waitable[T] {
	return &Waitable[T]{
		id:      nextID.Add(1),
		payload: payload,
		done:    make(chan struct{}),
	}
}

// Go launches fn on its own goroutine and settles the returned Waitable with
// its outcome. A panic inside fn rejects the Waitable instead of crashing the
// process.
func Go[T any](ctx context.Context, payload any, fn func(ctx context.Context) (T, error)) *Waitable[T] {
	w := New[T](payload)
	go func() {
		value, err := run(ctx, fn)
		if err != nil {
			mustSettle(w.Reject(err))
			return
		}
		mustSettle(w.Resolve(value))
	}()
	return w
}

func run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn(ctx)
}

// mustSettle fails fast: a Waitable owned by Go is settled by nobody else.
func mustSettle(err error) {
	if err != nil {
		panic(err)
	}
}

// ID returns the process-unique identifier of the Waitable.
func (w *Waitable[T]) ID() uint64 { return w.id }

// Payload returns the metadata attached at creation.
func (w *Waitable[T]) Payload() any { return w.payload }

// State reports the current lifecycle state.
func (w *Waitable[T]) State() State { return State(w.state.Load()) }

// Settled reports whether the Waitable has left StatePending.
func (w *Waitable[T]) Settled() bool { return w.State() != StatePending }

// Done returns a channel closed once the Waitable settles. Receiving from it
// never consumes the outcome.
func (w *Waitable[T]) Done() <-chan struct{} { return w.done }

// Seq returns the global settle sequence number, or zero while pending. Lower
// numbers settled earlier.
func (w *Waitable[T]) Seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Value returns the fulfilled value, or the zero value otherwise.
func (w *Waitable[T]) Value() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Reason returns the rejection reason, or nil otherwise.
func (w *Waitable[T]) Reason() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// Result returns the value and reason together.
func (w *Waitable[T]) Result() (T, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value, w.reason
}

// Wait blocks until the Waitable settles or ctx finishes.
func (w *Waitable[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-w.Done():
		return w.Result()
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("waitable %d wait: %w", w.id, ctx.Err())
	}
}

// Resolve fulfils a pending Waitable with value.
func (w *Waitable[T]) Resolve(value T) error {
	return w.settle(StateFulfilled, func() { w.value = value })
}

// Reject rejects a pending Waitable with reason.
func (w *Waitable[T]) Reject(reason error) error {
	if reason == nil {
		reason = ErrRejected
	}
	return w.settle(StateRejected, func() { w.reason = reason })
}

func (w *Waitable[T]) settle(to State, store func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	from := State(w.state.Load())
	if from != StatePending {
		return fmt.Errorf("waitable %d: %s from %s: %w", w.id, verb(to), from, ErrInvalidState)
	}
	store()
	w.seq = settleSeq.Add(1)
	w.state.Store(int32(to))
	close(w.done)
	return nil
}

func verb(to State) string {
	if to == StateFulfilled {
		return "resolve"
	}
	return "reject"
}
