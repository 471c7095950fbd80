package promise

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/feather/data"
)

// Result is the terminal outcome of one member of SettleAll.
type Result[T any] struct {
	Value T
	Err   error
}

// Map derives a promise whose value is fn applied to p's value. Failures of
// p pass through without calling fn.
func Map[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	q := NewOn[U](p.dispatcher)
	p.addDependent(func(v T, err error) {
		if err != nil {
			var zero U
			q.completeInline(zero, err)
			return
		}
		q.completeInline(fn(v))
	})
	return q
}

// Then chains an asynchronous step: when p succeeds, fn starts the next
// operation and its outcome resolves the returned promise.
func Then[T, U any](p *Promise[T], fn func(T) *Promise[U]) *Promise[U] {
	q := NewOn[U](p.dispatcher)
	p.addDependent(func(v T, err error) {
		if err != nil {
			var zero U
			q.completeInline(zero, err)
			return
		}

		next := fn(v)
		if next == nil {
			var zero U
			q.completeInline(zero, fmt.Errorf("%w: chained step returned no promise", data.ErrInvalid))
			return
		}
		next.Promise(q)
	})
	return q
}

// Void drops the value of p.
func Void[T any](p *Promise[T]) *Promise[struct{}] {
	return Map(p, func(T) (struct{}, error) {
		return struct{}{}, nil
	})
}

// All succeeds with every value, in member order, once all members have
// succeeded. It fails with the first failure.
func All[T any](members ...*Promise[T]) *Promise[[]T] {
	result := NewOn[[]T](dispatcherOf(members))
	if len(members) == 0 {
		result.Resolve([]T{})
		return result
	}

	var (
		mu        sync.Mutex
		values    = make([]T, len(members))
		remaining = len(members)
	)

	for i, member := range members {
		member.addDependent(func(v T, err error) {
			if err != nil {
				result.completeInline(nil, err)
				return
			}

			mu.Lock()
			values[i] = v
			remaining--
			finished := remaining == 0
			mu.Unlock()

			if finished {
				result.completeInline(values, nil)
			}
		})
	}

	return result
}

// Any succeeds with the first successful value. It fails only after every
// member has failed, with all failures joined. An empty set fails with
// data.ErrInvalid.
func Any[T any](members ...*Promise[T]) *Promise[T] {
	result := NewOn[T](dispatcherOf(members))
	if len(members) == 0 {
		result.Fail(fmt.Errorf("%w: any of an empty set", data.ErrInvalid))
		return result
	}

	var (
		mu        sync.Mutex
		errs      = make([]error, len(members))
		remaining = len(members)
	)

	for i, member := range members {
		member.addDependent(func(v T, err error) {
			if err == nil {
				result.completeInline(v, nil)
				return
			}

			mu.Lock()
			errs[i] = err
			remaining--
			finished := remaining == 0
			mu.Unlock()

			if finished {
				var zero T
				result.completeInline(zero, errors.Join(errs...))
			}
		})
	}

	return result
}

// SettleAll resolves once every member is terminal, with each outcome in
// member order. It never fails.
func SettleAll[T any](members ...*Promise[T]) *Promise[[]Result[T]] {
	result := NewOn[[]Result[T]](dispatcherOf(members))
	if len(members) == 0 {
		result.Resolve([]Result[T]{})
		return result
	}

	var (
		mu        sync.Mutex
		results   = make([]Result[T], len(members))
		remaining = len(members)
	)

	for i, member := range members {
		member.addDependent(func(v T, err error) {
			mu.Lock()
			results[i] = Result[T]{Value: v, Err: err}
			remaining--
			finished := remaining == 0
			mu.Unlock()

			if finished {
				result.completeInline(results, nil)
			}
		})
	}

	return result
}

func dispatcherOf[T any](members []*Promise[T]) *Dispatcher {
	if len(members) > 0 {
		return members[0].dispatcher
	}
	return Default()
}
