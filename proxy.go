package feather

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/feather/clock"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/log"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
)

// ProxyTransfer crawls the source tree and moves every file through a pipe
// from a source tap to a destination sink. Directories are recreated at the
// destination before their children are enqueued.
//
// A failed file or directory is recorded and the walk continues with its
// siblings; a failed directory listing abandons only that subtree. Only a
// failure at the root aborts the whole transfer.
type ProxyTransfer struct {
	id          string
	source      Resource
	destination Resource
	options     *TransferOptions
	logger      *log.Logger
	clock       clock.Clock

	onStart    *promise.Promise[struct{}]
	onStop     *promise.Promise[struct{}]
	progress   Progress
	throughput *Throughput

	mu        sync.Mutex
	started   bool
	finished  bool
	began     time.Time
	queue     []entry
	listQueue []*path.Path
	transfers map[string]*Pipe
	listings  map[string]*promise.Promise[*data.Stat]
	failures  []Failure
	stats     TransferStats
}

type entry struct {
	path *path.Path
	stat *data.Stat
}

var _ Transfer = (*ProxyTransfer)(nil)

func NewProxyTransfer(source, destination Resource, opts ...TransferOption) (*ProxyTransfer, error) {
	if source.IsZero() || destination.IsZero() {
		return nil, fmt.Errorf("%w: transfer needs a source and a destination", data.ErrInvalid)
	}
	if !source.IsSingleton() || !destination.IsSingleton() {
		return nil, fmt.Errorf("%w: transfer of glob resources", data.ErrUnsupported)
	}

	options := newDefaultTransferOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	id := uuid.Must(uuid.NewV7()).String()
	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger("feather", options.LogLevel, options.LogFile, options.NoTerminalLog)
	}

	t := &ProxyTransfer{
		id:          id,
		source:      source,
		destination: destination,
		options:     options,
		logger:      logger.Named("transfer").With("id", id),
		clock:       options.Clock,
		onStart:     promise.New[struct{}](),
		onStop:      promise.New[struct{}](),
		throughput:  NewThroughput(options.Clock),
		transfers:   make(map[string]*Pipe),
		listings:    make(map[string]*promise.Promise[*data.Stat]),
	}
	t.onStop.OnAlways(t.teardown)

	return t, nil
}

func (t *ProxyTransfer) ID() string {
	return t.id
}

func (t *ProxyTransfer) Source() Resource {
	return t.source
}

func (t *ProxyTransfer) Destination() Resource {
	return t.destination
}

func (t *ProxyTransfer) OnStart() *promise.Promise[struct{}] {
	return t.onStart
}

func (t *ProxyTransfer) OnStop() *promise.Promise[struct{}] {
	return t.onStop
}

func (t *ProxyTransfer) Progress() *Progress {
	return &t.progress
}

func (t *ProxyTransfer) Throughput() *Throughput {
	return t.throughput
}

// Failures returns the sub-resources that failed so far.
func (t *ProxyTransfer) Failures() []Failure {
	t.mu.Lock()
	defer t.mu.Unlock()

	failures := make([]Failure, len(t.failures))
	copy(failures, t.failures)
	return failures
}

func (t *ProxyTransfer) Stats() TransferStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.stats
	stats.Queued = len(t.queue) + len(t.listQueue)
	stats.InFlight = len(t.transfers)
	stats.Listing = len(t.listings)
	return stats
}

func (t *ProxyTransfer) Start() (*promise.Promise[struct{}], error) {
	t.mu.Lock()
	if t.started || t.finished || t.onStop.IsDone() {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: transfer '%s' was already started", data.ErrIllegalState, t.id)
	}
	t.started = true
	t.began = t.clock.Now()
	// The root listing is counted before anything runs so the transfer
	// cannot look complete while the sessions initialize.
	t.listings[path.Dot.String()] = nil
	listingsInFlight.Inc()
	t.mu.Unlock()

	t.logger.Info("Starting transfer from '%s' to '%s'", t.source, t.destination)
	t.throughput.Start()

	initialized := promise.All(
		promise.Void(t.source.Session().Initialize()),
		promise.Void(t.destination.Session().Initialize()),
	)
	initialized.OnAlways(func(_ []struct{}, err error) {
		if err != nil {
			t.onStart.Fail(err)
			t.abort(err)
			return
		}
		t.onStart.Resolve(struct{}{})
		t.listRoot()
	})

	return t.onStop, nil
}

func (t *ProxyTransfer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.settleUnsafe(data.ErrCanceled)
}

func (t *ProxyTransfer) listRoot() {
	stat := t.source.Stat()
	if !t.track(path.Dot, stat) {
		return
	}

	stat.OnAlways(func(s *data.Stat, err error) {
		if err != nil {
			t.abort(data.NewResourceError("stat", t.source.String(), err))
			return
		}
		if s.IsSymlink() {
			t.abort(data.NewResourceError("stat", t.source.String(), errSymlink()))
			return
		}

		if !s.Dir {
			t.progress.AddTotal(s.Size)

			t.mu.Lock()
			t.queue = append(t.queue, entry{path: path.Dot, stat: s})
			var launches []func()
			if t.releaseListingUnsafe(path.Dot) {
				launches = t.pumpUnsafe()
				t.checkUnsafe()
			}
			t.mu.Unlock()

			run(launches)
			return
		}

		created, err := t.destination.Mkdir()
		if err != nil {
			t.abort(data.NewResourceError("mkdir", t.destination.String(), err))
			return
		}
		created.OnAlways(func(_ struct{}, err error) {
			if err != nil && !errors.Is(err, data.ErrExist) {
				t.abort(data.NewResourceError("mkdir", t.destination.String(), err))
				return
			}
			t.enumerate(path.Dot, s)
		})
	})
}

func (t *ProxyTransfer) listChild(p *path.Path) {
	source := t.source.Select(p)
	stat := source.Stat()
	if !t.track(p, stat) {
		return
	}

	stat.OnAlways(func(s *data.Stat, err error) {
		if err != nil {
			t.finishListing(p, data.NewResourceError("stat", source.String(), err))
			return
		}
		if s.IsSymlink() {
			t.finishListing(p, data.NewResourceError("stat", source.String(), errSymlink()))
			return
		}

		destination := t.destination.Select(p)
		created, err := destination.Mkdir()
		if err != nil {
			t.finishListing(p, data.NewResourceError("mkdir", destination.String(), err))
			return
		}
		created.OnAlways(func(_ struct{}, err error) {
			if err != nil && !errors.Is(err, data.ErrExist) {
				t.finishListing(p, data.NewResourceError("mkdir", destination.String(), err))
				return
			}
			t.enumerate(p, s)
		})
	})
}

// track stores the stat promise of a running listing so teardown can cancel
// it. It reports false when the transfer already ended.
func (t *ProxyTransfer) track(p *path.Path, stat *promise.Promise[*data.Stat]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.listings[p.String()]; !exists || t.finished {
		stat.Cancel()
		return false
	}
	t.listings[p.String()] = stat
	return true
}

// enumerate enqueues the children of the directory at p and completes its
// listing in the same critical section.
func (t *ProxyTransfer) enumerate(p *path.Path, s *data.Stat) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}

	for _, child := range s.Files() {
		childPath := p.AppendLiteral(child.Name)
		switch {
		case child.IsSymlink():
			t.failUnsafe(childPath, data.NewResourceError("stat", t.source.Select(childPath).String(), errSymlink()))
			recordResource("file", errSymlink())
		case child.Dir:
			t.listQueue = append(t.listQueue, childPath)
		default:
			t.progress.AddTotal(child.Size)
			t.queue = append(t.queue, entry{path: childPath, stat: child})
		}
	}
	launches := t.finishListingUnsafe(p, nil)
	t.mu.Unlock()

	run(launches)
}

func (t *ProxyTransfer) transfer(e entry) {
	source := t.source.Select(e.path)
	destination := t.destination.Select(e.path)

	pipe, err := t.assemble(e.path, source, destination)
	if err != nil {
		t.finishTransfer(e.path, data.NewResourceError("transfer", source.String(), err))
		return
	}

	t.mu.Lock()
	if _, exists := t.transfers[e.path.String()]; !exists {
		t.mu.Unlock()
		pipe.Stop()
		return
	}
	t.transfers[e.path.String()] = pipe
	t.mu.Unlock()

	t.logger.Debug("Transferring '%s' (%d bytes)", e.path, e.stat.Size)
	done, err := pipe.Start()
	if err != nil {
		t.finishTransfer(e.path, data.NewResourceError("transfer", source.String(), err))
		return
	}
	done.OnAlways(func(_ struct{}, err error) {
		if err != nil {
			err = data.NewResourceError("transfer", source.String(), err)
		}
		t.finishTransfer(e.path, err)
	})
}

func (t *ProxyTransfer) assemble(p *path.Path, source, destination Resource) (*Pipe, error) {
	tap, err := source.Tap()
	if err != nil {
		return nil, err
	}
	sink, err := destination.Sink()
	if err != nil {
		return nil, err
	}

	filters := []Filter{NewMonitor(&t.progress, t.throughput)}
	if t.options.Filters != nil {
		filters = append(filters, t.options.Filters(TrustedRelative(source, t.source, p, source))...)
	}

	pipe, err := TapPipe(tap).Attach(FilterPipe(filters...))
	if err != nil {
		return nil, err
	}
	return pipe.Attach(SinkPipe(sink))
}

func (t *ProxyTransfer) finishListing(p *path.Path, err error) {
	t.mu.Lock()
	launches := t.finishListingUnsafe(p, err)
	t.mu.Unlock()

	run(launches)
}

func (t *ProxyTransfer) finishListingUnsafe(p *path.Path, err error) []func() {
	if !t.releaseListingUnsafe(p) {
		return nil
	}

	t.stats.Directories++
	recordResource("directory", err)
	if err != nil {
		t.failUnsafe(p, err)
	}

	launches := t.pumpUnsafe()
	t.checkUnsafe()
	return launches
}

// releaseListingUnsafe frees the listing slot of p. It reports false when
// the slot was already released by teardown.
func (t *ProxyTransfer) releaseListingUnsafe(p *path.Path) bool {
	if _, exists := t.listings[p.String()]; !exists {
		return false
	}
	delete(t.listings, p.String())
	listingsInFlight.Dec()
	return true
}

func (t *ProxyTransfer) finishTransfer(p *path.Path, err error) {
	t.mu.Lock()
	if _, exists := t.transfers[p.String()]; !exists {
		t.mu.Unlock()
		return
	}
	delete(t.transfers, p.String())
	transfersInFlight.Dec()

	t.stats.Files++
	recordResource("file", err)
	if err != nil {
		t.failUnsafe(p, err)
	} else {
		t.logger.Debug("Transferred '%s'", p)
	}

	launches := t.pumpUnsafe()
	t.checkUnsafe()
	t.mu.Unlock()

	run(launches)
}

func (t *ProxyTransfer) failUnsafe(p *path.Path, err error) {
	t.logger.Warn("Failed to transfer '%s': %v", p, err)
	t.failures = append(t.failures, Failure{Path: p, Err: err})
	t.stats.Failed++
}

// pumpUnsafe moves queued work into the free listing and transfer slots.
// Slots are reserved here; the returned functions start the work and must
// be run without holding the lock.
func (t *ProxyTransfer) pumpUnsafe() []func() {
	if t.finished {
		return nil
	}

	var launches []func()
	for len(t.listQueue) > 0 && below(len(t.listings), t.options.ListingConcurrency) {
		p := t.listQueue[0]
		t.listQueue = t.listQueue[1:]

		t.listings[p.String()] = nil
		listingsInFlight.Inc()
		launches = append(launches, func() { t.listChild(p) })
	}

	for len(t.queue) > 0 && below(len(t.transfers), t.options.Concurrency) {
		e := t.queue[0]
		t.queue = t.queue[1:]

		t.transfers[e.path.String()] = nil
		transfersInFlight.Inc()
		if len(t.transfers) > t.stats.PeakInFlight {
			t.stats.PeakInFlight = len(t.transfers)
		}
		launches = append(launches, func() { t.transfer(e) })
	}
	return launches
}

func (t *ProxyTransfer) checkUnsafe() {
	if t.finished {
		return
	}
	if len(t.queue)+len(t.listQueue)+len(t.transfers)+len(t.listings) > 0 {
		return
	}

	if len(t.failures) > 0 {
		failures := make([]Failure, len(t.failures))
		copy(failures, t.failures)
		t.settleUnsafe(&TransferError{Failures: failures})
		return
	}
	t.settleUnsafe(nil)
}

func (t *ProxyTransfer) abort(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return
	}
	t.logger.Error("Aborting transfer: %v", err)
	t.settleUnsafe(err)
}

// settleUnsafe completes OnStop once. Teardown of in-flight work happens in
// the OnStop handler.
func (t *ProxyTransfer) settleUnsafe(err error) {
	if t.finished {
		return
	}
	t.finished = true

	elapsed := time.Duration(0)
	if !t.began.IsZero() {
		elapsed = t.clock.Now().Sub(t.began)
	}
	transferDuration.WithLabelValues(statusLabel(err)).Observe(elapsed.Seconds())

	if err != nil {
		t.onStop.Fail(err)
		return
	}
	t.logger.Info("Transfer completed: %d files, %s", t.stats.Files, &t.progress)
	t.onStop.Resolve(struct{}{})
}

func (t *ProxyTransfer) teardown(_ struct{}, err error) {
	t.mu.Lock()
	t.finished = true

	pipes := make([]*Pipe, 0, len(t.transfers))
	for _, pipe := range t.transfers {
		if pipe != nil {
			pipes = append(pipes, pipe)
		}
	}
	stats := make([]*promise.Promise[*data.Stat], 0, len(t.listings))
	for _, stat := range t.listings {
		if stat != nil {
			stats = append(stats, stat)
		}
	}

	transfersInFlight.Sub(float64(len(t.transfers)))
	listingsInFlight.Sub(float64(len(t.listings)))
	clear(t.transfers)
	clear(t.listings)
	t.queue = nil
	t.listQueue = nil
	t.mu.Unlock()

	t.throughput.Stop()
	if err != nil && data.IsCanceled(err) {
		t.logger.Info("Transfer canceled")
	}

	for _, pipe := range pipes {
		pipe.Stop()
	}
	for _, stat := range stats {
		stat.Cancel()
	}
}

func below(n, limit int) bool {
	return limit <= 0 || n < limit
}

func run(launches []func()) {
	for _, launch := range launches {
		launch()
	}
}

func errSymlink() error {
	return fmt.Errorf("%w: %w", data.ErrUnsupported, data.ErrIsSymlink)
}
