package feather_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/pipes"
	"github.com/mwantia/feather/promise"
)

// gateFilter holds every sub-resource in Initialize until the gate opens.
type gateFilter struct {
	feather.Passthrough

	entered chan struct{}
	gate    chan struct{}
}

func newGateFilter() *gateFilter {
	return &gateFilter{
		entered: make(chan struct{}, 16),
		gate:    make(chan struct{}),
	}
}

func (g *gateFilter) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	next, err := g.Passthrough.Initialize(rel)
	if err != nil {
		return nil, err
	}

	g.entered <- struct{}{}
	held := promise.New[struct{}]()
	go func() {
		<-g.gate
		next.Promise(held)
	}()
	return held, nil
}

func TestPipe_Orientation(t *testing.T) {
	tests := map[string]struct {
		build    func() (*feather.Pipe, *feather.Pipe)
		expected feather.Orientation
		err      error
	}{
		"tap+sink": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.TapPipe(pipes.NewStringTap("x")), feather.SinkPipe(pipes.NewDiscardSink())
			},
			expected: feather.OrientationConnected,
		},
		"sink+tap": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.SinkPipe(pipes.NewDiscardSink()), feather.TapPipe(pipes.NewStringTap("x"))
			},
			expected: feather.OrientationConnected,
		},
		"filter+tap": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.FilterPipe(pipes.NewChecksum()), feather.TapPipe(pipes.NewStringTap("x"))
			},
			expected: feather.OrientationTap,
		},
		"sink+filter": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.SinkPipe(pipes.NewDiscardSink()), feather.FilterPipe(pipes.NewChecksum())
			},
			expected: feather.OrientationSink,
		},
		"filter+filter": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.FilterPipe(pipes.NewChecksum()), feather.FilterPipe(pipes.NewChecksum())
			},
			expected: feather.OrientationAmbiguous,
		},
		"tap+tap": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.TapPipe(pipes.NewStringTap("x")), feather.TapPipe(pipes.NewStringTap("y"))
			},
			err: data.ErrOrientation,
		},
		"sink+sink": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				return feather.SinkPipe(pipes.NewDiscardSink()), feather.SinkPipe(pipes.NewDiscardSink())
			},
			err: data.ErrOrientation,
		},
		"connected+filter": {
			build: func() (*feather.Pipe, *feather.Pipe) {
				connected, _ := feather.TapPipe(pipes.NewStringTap("x")).Attach(feather.SinkPipe(pipes.NewDiscardSink()))
				return connected, feather.FilterPipe(pipes.NewChecksum())
			},
			err: data.ErrConnected,
		},
	}

	for name, test := range tests {
		t.Run(name, func(tst *testing.T) {
			a, b := test.build()
			joined, err := a.Attach(b)
			if test.err != nil {
				if !errors.Is(err, test.err) {
					tst.Fatalf("Expected %v, got %v", test.err, err)
				}
				if !data.IsConfiguration(err) {
					tst.Errorf("Expected a configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				tst.Fatalf("Attach failed: %v", err)
			}
			if joined.Orientation() != test.expected {
				tst.Errorf("Expected %s, got %s", test.expected, joined.Orientation())
			}
		})
	}
}

func TestPipe_Consumed(t *testing.T) {
	tap := feather.TapPipe(pipes.NewStringTap("x"))
	sink := feather.SinkPipe(pipes.NewDiscardSink())

	if _, err := tap.Attach(tap); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected ErrInvalid attaching to itself, got %v", err)
	}

	joined, err := tap.Attach(sink)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if _, err := tap.Attach(feather.SinkPipe(pipes.NewDiscardSink())); !errors.Is(err, data.ErrConnected) {
		t.Errorf("Expected ErrConnected reusing an attached pipe, got %v", err)
	}
	if _, err := tap.Start(); !errors.Is(err, data.ErrConnected) {
		t.Errorf("Expected ErrConnected starting an attached pipe, got %v", err)
	}

	done, err := joined.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := joined.Start(); !errors.Is(err, data.ErrIllegalState) {
		t.Errorf("Expected ErrIllegalState starting twice, got %v", err)
	}
	if _, err := done.Await(t.Context()); err != nil {
		t.Errorf("Pipe failed: %v", err)
	}
}

func TestPipe_StartIncomplete(t *testing.T) {
	if _, err := feather.TapPipe(pipes.NewStringTap("x")).Start(); !errors.Is(err, data.ErrOrientation) {
		t.Errorf("Expected ErrOrientation, got %v", err)
	}
	if _, err := feather.FilterPipe().Start(); !errors.Is(err, data.ErrOrientation) {
		t.Errorf("Expected ErrOrientation, got %v", err)
	}
}

func TestPipe_FilterOrder(t *testing.T) {
	tap := pipes.NewStringTap("ordered")
	first, second := pipes.NewChecksum(), pipes.NewChecksum()
	sink := pipes.NewAggregatorSink()

	// Filters attached to the sink side come after those on the tap side.
	upstream, err := feather.TapPipe(tap).Attach(feather.FilterPipe(first))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	downstream, err := feather.FilterPipe(second).Attach(feather.SinkPipe(sink))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	pipe, err := upstream.Attach(downstream)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	done, err := pipe.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := done.Await(t.Context()); err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}

	if first.Upstream() != feather.Element(tap) || first.Downstream() != feather.Receiver(second) {
		t.Errorf("First filter is not bound between tap and second filter")
	}
	if second.Downstream() != feather.Receiver(sink) {
		t.Errorf("Second filter is not bound to the sink")
	}
	if got, _ := sink.Get("."); string(got) != "ordered" {
		t.Errorf("Expected %q, got %q", "ordered", got)
	}
}

func TestPipe_PauseResume(t *testing.T) {
	tap := pipes.NewStringTap("paused")
	gate := newGateFilter()
	sink := pipes.NewAggregatorSink()

	pipe, err := feather.TapPipe(tap).Attach(feather.FilterPipe(gate))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	pipe, err = pipe.Attach(feather.SinkPipe(sink))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	done, err := pipe.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-gate.entered

	if err := pipe.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	for name, element := range map[string]feather.Element{"tap": tap, "filter": gate, "sink": sink} {
		if element.State() != feather.StatePaused {
			t.Errorf("Expected %s to be paused, got %s", name, element.State())
		}
	}
	if err := pipe.Pause(); !errors.Is(err, data.ErrIllegalState) {
		t.Errorf("Expected ErrIllegalState pausing twice, got %v", err)
	}

	if err := pipe.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if tap.State() != feather.StateRunning {
		t.Errorf("Expected tap to be running, got %s", tap.State())
	}

	close(gate.gate)
	if _, err := done.Await(t.Context()); err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	if got, _ := sink.Get("."); string(got) != "paused" {
		t.Errorf("Expected %q, got %q", "paused", got)
	}
}

func TestPipe_StopCancels(t *testing.T) {
	tap := pipes.NewStringTap("stopped")
	gate := newGateFilter()

	pipe, err := feather.TapPipe(tap).Attach(feather.FilterPipe(gate))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	pipe, err = pipe.Attach(feather.SinkPipe(pipes.NewDiscardSink()))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	done, err := pipe.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-gate.entered

	pipe.Stop()
	if _, err := done.Await(t.Context()); !data.IsCanceled(err) {
		t.Errorf("Expected cancellation, got %v", err)
	}
	if tap.State() != feather.StateStopped || gate.State() != feather.StateStopped {
		t.Errorf("Expected every element to be stopped")
	}
	close(gate.gate)
}

func TestPipe_AttachCrossed(t *testing.T) {
	for range 200 {
		a := feather.FilterPipe(&feather.Passthrough{})
		b := feather.FilterPipe(&feather.Passthrough{})

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = a.Attach(b)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = b.Attach(a)
		}()

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatalf("Crossed attach did not finish")
		}

		failed := 0
		for _, err := range errs {
			if err != nil {
				if !errors.Is(err, data.ErrConnected) {
					t.Fatalf("Expected ErrConnected, got %v", err)
				}
				failed++
			}
		}
		if failed != 1 {
			t.Fatalf("Expected exactly one attach to succeed, got %d failures", failed)
		}
	}
}
