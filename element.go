package feather

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/promise"
)

// Element is the lifecycle shared by every pipeline stage. Start may be
// called at most once. Stop is terminal and idempotent.
type Element interface {
	Start() (*promise.Promise[struct{}], error)
	Stop()
	Pause() error
	Resume() error
	State() State
}

// Receiver consumes slices. Initialize is called once per sub-resource
// before any of its slices are drained and Finalize exactly once after the
// last one. At most Concurrency sub-resources may be open at the same time,
// where a value of zero or less means unbounded. Random reports whether
// slices of different sub-resources may arrive interleaved.
//
// A receiver that cannot keep up pauses itself, which pauses everything
// upstream, and resumes once it has caught up.
type Receiver interface {
	Element
	Initialize(rel Relative[Resource]) (*promise.Promise[struct{}], error)
	Drain(rel Relative[data.Slice]) error
	Finalize(rel Relative[Resource]) (*promise.Promise[struct{}], error)
	Random() bool
	Concurrency() int
}

// Tap emits the slices of its source into the downstream receiver. Done
// resolves once the last sub-resource was finalized downstream.
type Tap interface {
	Element
	Source() Resource
	Done() *promise.Promise[struct{}]

	bind(up Element, down Receiver)
}

// Sink writes the slices it receives below its destination.
type Sink interface {
	Receiver
	Destination() Resource

	bind(up Element, down Receiver)
}

// Filter sits between a tap and a sink and forwards what it receives.
type Filter interface {
	Receiver

	bind(up Element, down Receiver)
}

// Stage holds the state shared by all pipeline elements: the lifecycle
// state, the neighbours assigned when a pipe starts and the sub-resources
// currently open. Implementations outside this package embed Stage to
// satisfy Tap, Sink and Filter.
type Stage struct {
	mu         sync.Mutex
	state      State
	upstream   Element
	downstream Receiver
	open       map[string]Relative[Resource]
	resumed    chan struct{}
}

func (s *Stage) bind(up Element, down Receiver) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upstream = up
	s.downstream = down
}

func (s *Stage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Transition applies e to the current state.
func (s *Stage) Transition(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionUnsafe(e)
}

func (s *Stage) transitionUnsafe(e Event) error {
	next, err := Transition(s.state, e)
	if err != nil {
		return err
	}

	switch {
	case next == StatePaused:
		s.resumed = make(chan struct{})
	case s.state == StatePaused && s.resumed != nil:
		close(s.resumed)
		s.resumed = nil
	}
	s.state = next
	return nil
}

// Upstream returns the element feeding this one, or nil for a tap.
func (s *Stage) Upstream() Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upstream
}

// Downstream returns the receiver fed by this element, or nil for a sink.
func (s *Stage) Downstream() Receiver {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.downstream
}

// AwaitRunning blocks while the stage is paused. It fails with
// data.ErrCanceled once the stage is stopped or ctx is done.
func (s *Stage) AwaitRunning(ctx context.Context) error {
	for {
		s.mu.Lock()
		state, resumed := s.state, s.resumed
		s.mu.Unlock()

		switch state {
		case StateStopped:
			return data.ErrCanceled
		case StatePaused:
			select {
			case <-resumed:
			case <-ctx.Done():
				return data.ErrCanceled
			}
		default:
			return nil
		}
	}
}

// Begin records rel as open. It fails when rel is already open, the stage
// is not running or more than limit sub-resources would be open.
func (s *Stage) Begin(rel Relative[Resource], limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning && s.state != StatePaused {
		return fmt.Errorf("%w: initialize '%s' while %s", data.ErrIllegalState, rel, s.state)
	}
	if s.open == nil {
		s.open = make(map[string]Relative[Resource])
	}
	if _, exists := s.open[rel.Key()]; exists {
		return fmt.Errorf("%w: '%s' is already initialized", data.ErrIllegalState, rel)
	}
	if limit > 0 && len(s.open) >= limit {
		return fmt.Errorf("%w: more than %d open sub-resources", data.ErrInvalid, limit)
	}

	s.open[rel.Key()] = rel
	return nil
}

// Check verifies that a slice for rel may be drained now.
func (s *Stage) Check(rel Relative[data.Slice]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning && s.state != StatePaused {
		return fmt.Errorf("%w: drain '%s' while %s", data.ErrIllegalState, rel, s.state)
	}
	if _, exists := s.open[rel.Key()]; !exists {
		return fmt.Errorf("%w: drain '%s' before initialize", data.ErrIllegalState, rel)
	}
	return nil
}

// End removes rel from the open set.
func (s *Stage) End(rel Relative[Resource]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[rel.Key()]; !exists {
		return fmt.Errorf("%w: finalize '%s' before initialize", data.ErrIllegalState, rel)
	}
	delete(s.open, rel.Key())
	return nil
}

// Open returns the number of sub-resources between Begin and End.
func (s *Stage) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.open)
}

// Passthrough is a filter forwarding everything to its downstream
// receiver. Filters embed it and override the calls they care about.
type Passthrough struct {
	Stage
}

func (p *Passthrough) Start() (*promise.Promise[struct{}], error) {
	if err := p.Transition(EventStart); err != nil {
		return nil, err
	}
	return promise.Resolved(struct{}{}), nil
}

func (p *Passthrough) Stop() {
	_ = p.Transition(EventStop)
}

// Pause pauses this stage and everything upstream of it.
func (p *Passthrough) Pause() error {
	if err := p.Transition(EventPause); err != nil {
		return err
	}
	if up := p.Upstream(); up != nil {
		return up.Pause()
	}
	return nil
}

func (p *Passthrough) Resume() error {
	if err := p.Transition(EventResume); err != nil {
		return err
	}
	if up := p.Upstream(); up != nil {
		return up.Resume()
	}
	return nil
}

func (p *Passthrough) Initialize(rel Relative[Resource]) (*promise.Promise[struct{}], error) {
	down, err := p.next()
	if err != nil {
		return nil, err
	}
	if err := p.Begin(rel, 0); err != nil {
		return nil, err
	}
	return down.Initialize(rel)
}

func (p *Passthrough) Drain(rel Relative[data.Slice]) error {
	down, err := p.next()
	if err != nil {
		return err
	}
	if err := p.Check(rel); err != nil {
		return err
	}
	return down.Drain(rel)
}

func (p *Passthrough) Finalize(rel Relative[Resource]) (*promise.Promise[struct{}], error) {
	down, err := p.next()
	if err != nil {
		return nil, err
	}
	if err := p.End(rel); err != nil {
		return nil, err
	}
	return down.Finalize(rel)
}

func (p *Passthrough) Random() bool {
	if down := p.Downstream(); down != nil {
		return down.Random()
	}
	return true
}

func (p *Passthrough) Concurrency() int {
	if down := p.Downstream(); down != nil {
		return down.Concurrency()
	}
	return 0
}

func (p *Passthrough) next() (Receiver, error) {
	down := p.Downstream()
	if down == nil {
		return nil, fmt.Errorf("%w: filter has no downstream receiver", data.ErrIllegalState)
	}
	return down, nil
}
