// Package promise provides a single-assignment asynchronous result cell.
//
// A Promise is resolved exactly once with a value, an error or a
// cancellation. Handlers registered with OnDone, OnFail and OnAlways run on
// the promise's Dispatcher after resolution, followed by dependents in the
// order they were registered. A dependent's own handlers and dependents run
// to completion before the next dependent is notified.
//
// Promises are never cancelled implicitly. Whoever starts the operation
// behind a promise owns it and must resolve or Cancel it; CancelOn ties that
// to a context.
package promise

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwantia/feather/data"
)

type state uint8

const (
	pending state = iota
	settling
	settled
)

// Promise is a single-assignment result of type T.
type Promise[T any] struct {
	dispatcher *Dispatcher

	mu         sync.Mutex
	state      state
	value      T
	err        error
	handlers   []func(T, error)
	dependents []func(T, error)
	done       chan struct{}
}

// New returns an unresolved promise on the default dispatcher.
func New[T any]() *Promise[T] {
	return NewOn[T](Default())
}

// NewOn returns an unresolved promise whose handlers run on d.
func NewOn[T any](d *Dispatcher) *Promise[T] {
	if d == nil {
		d = Default()
	}
	return &Promise[T]{
		dispatcher: d,
		done:       make(chan struct{}),
	}
}

// Resolved returns a promise already resolved with v.
func Resolved[T any](v T) *Promise[T] {
	p := New[T]()
	p.Resolve(v)
	return p
}

// Failed returns a promise already failed with err.
func Failed[T any](err error) *Promise[T] {
	p := New[T]()
	p.Fail(err)
	return p
}

// Dispatcher returns the dispatcher running this promise's handlers.
func (p *Promise[T]) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// Resolve completes the promise with v. It reports false if the promise was
// already resolved, in which case nothing changes.
func (p *Promise[T]) Resolve(v T) bool {
	return p.complete(v, nil)
}

// Fail completes the promise with err. A nil err is replaced by
// data.ErrInvalid so a failed promise always carries an error.
func (p *Promise[T]) Fail(err error) bool {
	if err == nil {
		err = data.ErrInvalid
	}
	var zero T
	return p.complete(zero, err)
}

// Complete resolves with v when err is nil and fails with err otherwise.
func (p *Promise[T]) Complete(v T, err error) bool {
	if err != nil {
		var zero T
		return p.complete(zero, err)
	}
	return p.complete(v, nil)
}

// Cancel fails the promise with data.ErrCanceled. Dependents observe the
// cancellation like any other failure.
func (p *Promise[T]) Cancel() bool {
	return p.Fail(data.ErrCanceled)
}

// CancelOn cancels the promise when ctx is done before it resolves.
func (p *Promise[T]) CancelOn(ctx context.Context) *Promise[T] {
	stop := context.AfterFunc(ctx, func() {
		p.Cancel()
	})
	p.OnAlways(func(T, error) {
		stop()
	})
	return p
}

// WithDeadline fails the promise with data.ErrTimeout if it has not resolved
// within d. The work behind the promise is not interrupted; stopping it is
// up to the failure handler.
func (p *Promise[T]) WithDeadline(d time.Duration) *Promise[T] {
	timer := p.dispatcher.clock.AfterFunc(d, func() {
		p.Fail(fmt.Errorf("%w after %s", data.ErrTimeout, d))
	})
	p.OnAlways(func(T, error) {
		timer.Stop()
	})
	return p
}

// OnDone registers fn to run with the value if the promise succeeds.
func (p *Promise[T]) OnDone(fn func(T)) *Promise[T] {
	return p.OnAlways(func(v T, err error) {
		if err == nil {
			fn(v)
		}
	})
}

// OnFail registers fn to run with the error if the promise fails.
func (p *Promise[T]) OnFail(fn func(error)) *Promise[T] {
	return p.OnAlways(func(_ T, err error) {
		if err != nil {
			fn(err)
		}
	})
}

// OnAlways registers fn to run once the promise resolves either way.
func (p *Promise[T]) OnAlways(fn func(T, error)) *Promise[T] {
	p.mu.Lock()
	if p.state != settled {
		p.handlers = append(p.handlers, fn)
		p.mu.Unlock()
		return p
	}
	v, err := p.value, p.err
	p.mu.Unlock()

	p.dispatcher.Dispatch(func() {
		fn(v, err)
	})
	return p
}

// Promise registers other to be resolved with this promise's outcome and
// returns other. Dependents are notified in registration order, after this
// promise's handlers.
func (p *Promise[T]) Promise(other *Promise[T]) *Promise[T] {
	p.addDependent(func(v T, err error) {
		other.completeInline(v, err)
	})
	return other
}

// Done returns a channel closed after the promise resolved and its handlers
// and dependents have run.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the promise settles or ctx is done. It must not be
// called from a handler of the same promise.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the outcome if the promise has resolved.
func (p *Promise[T]) Peek() (T, error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == pending {
		var zero T
		return zero, nil, false
	}
	return p.value, p.err, true
}

// IsDone reports whether the promise has resolved.
func (p *Promise[T]) IsDone() bool {
	_, _, ok := p.Peek()
	return ok
}

// IsSuccessful reports whether the promise resolved with a value.
func (p *Promise[T]) IsSuccessful() bool {
	_, err, ok := p.Peek()
	return ok && err == nil
}

// IsFailed reports whether the promise resolved with an error, including
// cancellation and timeout.
func (p *Promise[T]) IsFailed() bool {
	_, err, ok := p.Peek()
	return ok && err != nil
}

// IsCanceled reports whether the promise was cancelled.
func (p *Promise[T]) IsCanceled() bool {
	_, err, ok := p.Peek()
	return ok && data.IsCanceled(err)
}

// Err returns the failure, or nil while pending or after success.
func (p *Promise[T]) Err() error {
	_, err, _ := p.Peek()
	return err
}

func (p *Promise[T]) addDependent(fn func(T, error)) {
	p.mu.Lock()
	if p.state != settled {
		p.dependents = append(p.dependents, fn)
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()

	p.dispatcher.Dispatch(func() {
		fn(v, err)
	})
}

// transition records the outcome and reports whether this call won.
func (p *Promise[T]) transition(v T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != pending {
		return false
	}

	p.state = settling
	p.value = v
	p.err = err
	return true
}

func (p *Promise[T]) complete(v T, err error) bool {
	if !p.transition(v, err) {
		return false
	}
	p.dispatcher.Dispatch(p.settle)
	return true
}

// completeInline is used for dependents: it runs on the worker that is
// already settling the parent, which keeps dependents strictly ordered.
func (p *Promise[T]) completeInline(v T, err error) {
	if p.transition(v, err) {
		p.settle()
	}
}

func (p *Promise[T]) settle() {
	for {
		p.mu.Lock()
		handlers, dependents := p.handlers, p.dependents
		p.handlers, p.dependents = nil, nil
		if len(handlers) == 0 && len(dependents) == 0 {
			p.state = settled
			close(p.done)
			p.mu.Unlock()
			return
		}
		v, err := p.value, p.err
		p.mu.Unlock()

		for _, handler := range handlers {
			handler(v, err)
		}
		for _, dependent := range dependents {
			dependent(v, err)
		}
	}
}
