package feather

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/promise"
)

// Orientation tells which ends of a pipe are already occupied.
type Orientation uint8

const (
	// OrientationAmbiguous pipes hold only filters.
	OrientationAmbiguous Orientation = iota
	// OrientationTap pipes start at a tap but have no sink yet.
	OrientationTap
	// OrientationSink pipes end in a sink but have no tap yet.
	OrientationSink
	// OrientationConnected pipes have both ends and can be started.
	OrientationConnected
)

func (o Orientation) String() string {
	switch o {
	case OrientationAmbiguous:
		return "ambiguous"
	case OrientationTap:
		return "tap-oriented"
	case OrientationSink:
		return "sink-oriented"
	case OrientationConnected:
		return "connected"
	default:
		return fmt.Sprintf("orientation(%d)", uint8(o))
	}
}

// Pipe is a linear chain of a tap, any number of filters and a sink,
// assembled by attaching partial pipes to each other.
type Pipe struct {
	mu       sync.Mutex
	tap      Tap
	filters  []Filter
	sink     Sink
	consumed bool
	started  bool

	// rank orders the locks of two pipes being attached.
	rankOnce sync.Once
	rank     uint64
}

var pipeRanks atomic.Uint64

func (p *Pipe) lockRank() uint64 {
	p.rankOnce.Do(func() {
		p.rank = pipeRanks.Add(1)
	})
	return p.rank
}

func TapPipe(t Tap) *Pipe {
	return &Pipe{tap: t}
}

func SinkPipe(s Sink) *Pipe {
	return &Pipe{sink: s}
}

func FilterPipe(filters ...Filter) *Pipe {
	return &Pipe{filters: filters}
}

func (p *Pipe) Orientation() Orientation {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.orientationUnsafe()
}

func (p *Pipe) orientationUnsafe() Orientation {
	switch {
	case p.tap != nil && p.sink != nil:
		return OrientationConnected
	case p.tap != nil:
		return OrientationTap
	case p.sink != nil:
		return OrientationSink
	default:
		return OrientationAmbiguous
	}
}

// Attach joins p and other into a new pipe with the tap-holding side
// upstream. When neither side decides it, p goes first. Both operands are
// consumed and cannot be attached again. Incompatible orientations fail
// with data.ErrOrientation and occupied pipes with data.ErrConnected.
func (p *Pipe) Attach(other *Pipe) (*Pipe, error) {
	if other == nil || other == p {
		return nil, fmt.Errorf("%w: cannot attach a pipe to itself", data.ErrInvalid)
	}

	first, second := p, other
	if second.lockRank() < first.lockRank() {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if p.consumed || other.consumed {
		return nil, fmt.Errorf("%w: pipe was already attached", data.ErrConnected)
	}

	po, oo := p.orientationUnsafe(), other.orientationUnsafe()
	if po == OrientationConnected || oo == OrientationConnected {
		return nil, fmt.Errorf("%w: cannot attach %s to %s", data.ErrConnected, oo, po)
	}
	if po == oo && po != OrientationAmbiguous {
		return nil, fmt.Errorf("%w: cannot attach %s to %s", data.ErrOrientation, oo, po)
	}

	up, down := p, other
	if p.sink != nil || other.tap != nil {
		up, down = other, p
	}

	joined := &Pipe{
		tap:     up.tap,
		sink:    down.sink,
		filters: make([]Filter, 0, len(up.filters)+len(down.filters)),
	}
	joined.filters = append(joined.filters, up.filters...)
	joined.filters = append(joined.filters, down.filters...)

	p.consumed = true
	other.consumed = true
	return joined, nil
}

// Start binds every element to its neighbours, starts the receivers and,
// once all of them are ready, the tap. The returned promise resolves when
// the tap is done. Every element is stopped once that happens, whether the
// pipe succeeded or failed.
func (p *Pipe) Start() (*promise.Promise[struct{}], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.consumed {
		return nil, fmt.Errorf("%w: pipe was attached to another pipe", data.ErrConnected)
	}
	if o := p.orientationUnsafe(); o != OrientationConnected {
		return nil, fmt.Errorf("%w: cannot start %s pipe", data.ErrOrientation, o)
	}
	if p.started {
		return nil, fmt.Errorf("%w: pipe already started", data.ErrIllegalState)
	}
	p.started = true

	receivers := p.receiversUnsafe()
	p.tap.bind(nil, receivers[0])
	for i, f := range p.filters {
		var up Element = p.tap
		if i > 0 {
			up = p.filters[i-1]
		}
		f.bind(up, receivers[i+1])
	}
	var up Element = p.tap
	if len(p.filters) > 0 {
		up = p.filters[len(p.filters)-1]
	}
	p.sink.bind(up, nil)

	ready := make([]*promise.Promise[struct{}], 0, len(receivers))
	for i := len(receivers) - 1; i >= 0; i-- {
		started, err := receivers[i].Start()
		if err != nil {
			p.stopUnsafe()
			return nil, err
		}
		ready = append(ready, started)
	}

	tap := p.tap
	result := promise.Then(promise.All(ready...), func([]struct{}) *promise.Promise[struct{}] {
		if _, err := tap.Start(); err != nil {
			return promise.Failed[struct{}](err)
		}
		return tap.Done()
	})
	result.OnAlways(func(struct{}, error) {
		p.Stop()
	})
	return result, nil
}

// Stop stops every element, tap first.
func (p *Pipe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopUnsafe()
}

func (p *Pipe) stopUnsafe() {
	if p.tap != nil {
		p.tap.Stop()
	}
	for _, f := range p.filters {
		f.Stop()
	}
	if p.sink != nil {
		p.sink.Stop()
	}
}

// Pause pauses the sink, which propagates up to the tap.
func (p *Pipe) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		return fmt.Errorf("%w: pipe has no sink", data.ErrOrientation)
	}
	return p.sink.Pause()
}

func (p *Pipe) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		return fmt.Errorf("%w: pipe has no sink", data.ErrOrientation)
	}
	return p.sink.Resume()
}

// Tap returns the pipe's tap, or nil.
func (p *Pipe) Tap() Tap {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tap
}

// Sink returns the pipe's sink, or nil.
func (p *Pipe) Sink() Sink {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sink
}

func (p *Pipe) receiversUnsafe() []Receiver {
	receivers := make([]Receiver, 0, len(p.filters)+1)
	for _, f := range p.filters {
		receivers = append(receivers, f)
	}
	return append(receivers, p.sink)
}
