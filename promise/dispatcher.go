package promise

import (
	"runtime"
	"sync"

	"github.com/mwantia/feather/clock"
)

// Dispatcher is the worker pool that runs promise handlers. Resolving a
// promise only queues work here; handlers never run on the resolving
// goroutine.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	head   int
	closed bool

	clock clock.Clock
	wg    sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock replaces the clock used for deadlines.
func WithClock(c clock.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// NewDispatcher starts a pool with the given number of workers. Values below
// one are raised to one.
func NewDispatcher(workers int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		clock: clock.Real(),
	}
	d.cond = sync.NewCond(&d.mu)

	for _, opt := range opts {
		opt(d)
	}

	workers = max(workers, 1)
	d.wg.Add(workers)
	for range workers {
		go d.work()
	}

	return d
}

var (
	defaultOnce       sync.Once
	defaultDispatcher *Dispatcher
)

// Default returns the process-wide dispatcher shared by every promise that
// was not created with NewOn.
func Default() *Dispatcher {
	defaultOnce.Do(func() {
		defaultDispatcher = NewDispatcher(min(runtime.GOMAXPROCS(0), 8))
	})
	return defaultDispatcher
}

// Clock returns the clock used for deadlines.
func (d *Dispatcher) Clock() clock.Clock {
	return d.clock
}

// Dispatch queues task. Tasks dispatched after Close run on their own
// goroutine so completions are never lost.
func (d *Dispatcher) Dispatch(task func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		go task()
		return
	}

	d.queue = append(d.queue, task)
	d.mu.Unlock()
	d.cond.Signal()
}

// Close stops the workers once the queue has drained and waits for them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for {
		task, ok := d.next()
		if !ok {
			return
		}
		task()
	}
}

func (d *Dispatcher) next() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.head == len(d.queue) {
		if d.closed {
			return nil, false
		}
		d.cond.Wait()
	}

	task := d.queue[d.head]
	d.queue[d.head] = nil
	d.head++

	// Reclaim the consumed prefix once the queue runs empty.
	if d.head == len(d.queue) {
		d.queue = d.queue[:0]
		d.head = 0
	}

	return task, true
}
