package feather

import (
	"sync"
	"time"

	"github.com/mwantia/feather/clock"
)

// ThroughputQuantum is the window over which the instantaneous rate is
// measured.
const ThroughputQuantum = 500 * time.Millisecond

// Throughput tracks the average and the instantaneous byte rate of a
// transfer.
type Throughput struct {
	clock clock.Clock

	mu      sync.Mutex
	started time.Time
	stopped time.Time
	total   int64

	window      time.Time
	windowBytes int64
	rate        float64
}

func NewThroughput(c clock.Clock) *Throughput {
	if c == nil {
		c = clock.Real()
	}
	return &Throughput{clock: c}
}

// Start begins the measurement. Calling it again has no effect.
func (t *Throughput) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started.IsZero() {
		t.started = t.clock.Now()
		t.window = t.started
	}
}

// Stop freezes the average at the current time.
func (t *Throughput) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started.IsZero() && t.stopped.IsZero() {
		t.stopped = t.clock.Now()
	}
}

// Add records n transferred bytes.
func (t *Throughput) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.started.IsZero() {
		t.started = now
		t.window = now
	}

	t.total += n
	t.windowBytes += n
	t.rollUnsafe(now)
}

// Average returns bytes per second since Start.
func (t *Throughput) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started.IsZero() {
		return 0
	}
	end := t.stopped
	if end.IsZero() {
		end = t.clock.Now()
	}
	elapsed := end.Sub(t.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.total) / elapsed
}

// Instantaneous returns bytes per second measured over the last complete
// quantum.
func (t *Throughput) Instantaneous() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started.IsZero() {
		return 0
	}
	t.rollUnsafe(t.clock.Now())
	return t.rate
}

func (t *Throughput) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

func (t *Throughput) rollUnsafe(now time.Time) {
	elapsed := now.Sub(t.window)
	if elapsed < ThroughputQuantum {
		return
	}

	t.rate = float64(t.windowBytes) / elapsed.Seconds()
	t.window = now
	t.windowBytes = 0
}
