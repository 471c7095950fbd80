package promise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwantia/feather/clock"
	"github.com/mwantia/feather/data"
)

func await[T any](t *testing.T, p *Promise[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	v, err := p.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) && !p.IsDone() {
		t.Fatalf("Promise did not resolve in time")
	}
	return v, err
}

func TestPromise_SingleAssignment(t *testing.T) {
	p := New[int]()

	var calls atomic.Int32
	dependent := New[int]()
	p.Promise(dependent)
	p.OnAlways(func(int, error) {
		calls.Add(1)
	})

	if !p.Resolve(1) {
		t.Fatalf("Expected first Resolve to win")
	}
	if p.Resolve(2) || p.Fail(errors.New("late")) || p.Cancel() {
		t.Errorf("Expected later resolve calls to be no-ops")
	}

	v, err := await(t, p)
	if err != nil || v != 1 {
		t.Errorf("Expected 1, got %d (%v)", v, err)
	}

	dv, err := await(t, dependent)
	if err != nil || dv != 1 {
		t.Errorf("Expected dependent to observe 1, got %d (%v)", dv, err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected handler to run once, ran %d times", calls.Load())
	}
}

func TestPromise_DependentOrdering(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Close()

	p := NewOn[string](d)

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(event string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	}

	p.OnDone(func(string) {
		record("P")
	})

	var dependents []*Promise[string]
	for _, name := range []string{"A", "B", "C"} {
		dep := NewOn[string](d)
		dep.OnDone(func(string) {
			record(name + ":start")
			time.Sleep(5 * time.Millisecond)
			record(name + ":end")
		})
		p.Promise(dep)
		dependents = append(dependents, dep)
	}

	p.Resolve("go")
	for _, dep := range dependents {
		await(t, dep)
	}

	expected := []string{"P", "A:start", "A:end", "B:start", "B:end", "C:start", "C:end"}

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(events) != fmt.Sprint(expected) {
		t.Errorf("Expected %v, got %v", expected, events)
	}
}

func TestPromise_HandlersNotInline(t *testing.T) {
	p := New[int]()

	var mu sync.Mutex
	ran := make(chan struct{})
	p.OnDone(func(int) {
		// Deadlocks if the handler runs inside Resolve below.
		mu.Lock()
		defer mu.Unlock()
		close(ran)
	})

	mu.Lock()
	p.Resolve(1)
	mu.Unlock()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("Handler never ran")
	}
}

func TestPromise_LateRegistration(t *testing.T) {
	p := Resolved("value")
	await(t, p)

	got := make(chan string, 1)
	p.OnDone(func(v string) {
		got <- v
	})

	select {
	case v := <-got:
		if v != "value" {
			t.Errorf("Expected 'value', got '%s'", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Late handler never ran")
	}

	dep := p.Promise(New[string]())
	if v, err := await(t, dep); err != nil || v != "value" {
		t.Errorf("Expected late dependent to resolve, got '%s' (%v)", v, err)
	}
}

func TestPromise_CancelPropagates(t *testing.T) {
	p := New[int]()
	dep := p.Promise(New[int]())
	mapped := Map(p, func(v int) (int, error) {
		return v * 2, nil
	})

	p.Cancel()

	for _, q := range []*Promise[int]{p, dep, mapped} {
		_, err := await(t, q)
		if !errors.Is(err, data.ErrCanceled) {
			t.Errorf("Expected cancellation, got %v", err)
		}
		if !q.IsCanceled() || !q.IsFailed() || q.IsSuccessful() {
			t.Errorf("Unexpected state after cancellation")
		}
	}
}

func TestPromise_CancelOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := New[int]().CancelOn(ctx)
	cancel()

	if _, err := await(t, p); !data.IsCanceled(err) {
		t.Errorf("Expected cancellation, got %v", err)
	}
}

func TestPromise_FailNil(t *testing.T) {
	p := Failed[int](nil)
	if _, err := await(t, p); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestPromise_MapThen(t *testing.T) {
	p := New[int]()
	doubled := Map(p, func(v int) (int, error) {
		return v * 2, nil
	})
	text := Then(doubled, func(v int) *Promise[string] {
		return Resolved(fmt.Sprintf("v=%d", v))
	})
	failing := Map(p, func(int) (string, error) {
		return "", data.ErrNotExist
	})

	p.Resolve(21)

	if v, err := await(t, text); err != nil || v != "v=42" {
		t.Errorf("Expected 'v=42', got '%s' (%v)", v, err)
	}
	if _, err := await(t, failing); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}

	broken := Then(Resolved(1), func(int) *Promise[int] {
		return nil
	})
	if _, err := await(t, broken); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected ErrInvalid for nil chained promise, got %v", err)
	}
}

func TestPromise_Deadline(t *testing.T) {
	fake := clock.Fake(time.Now())
	d := NewDispatcher(2, WithClock(fake))
	defer d.Close()

	slow := NewOn[int](d).WithDeadline(time.Second)
	fast := NewOn[int](d).WithDeadline(time.Second)

	fast.Resolve(7)
	if v, err := await(t, fast); err != nil || v != 7 {
		t.Fatalf("Expected 7, got %d (%v)", v, err)
	}

	fake.Advance(2 * time.Second)

	_, err := await(t, slow)
	if !data.IsTimeout(err) {
		t.Errorf("Expected timeout, got %v", err)
	}
	if data.IsCanceled(err) {
		t.Errorf("Expected timeout to be distinct from cancellation")
	}
	if slow.Resolve(1) {
		t.Errorf("Expected producer resolve after timeout to be a no-op")
	}
	if fake.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", fake.Pending())
	}
}

func TestCombinators_All(t *testing.T) {
	a, b, c := New[int](), New[int](), New[int]()
	all := All(a, b, c)

	c.Resolve(3)
	a.Resolve(1)
	b.Resolve(2)

	values, err := await(t, all)
	if err != nil || fmt.Sprint(values) != "[1 2 3]" {
		t.Errorf("Expected [1 2 3], got %v (%v)", values, err)
	}

	x, y := New[int](), New[int]()
	failed := All(x, y)
	y.Fail(data.ErrPermission)
	if _, err := await(t, failed); !errors.Is(err, data.ErrPermission) {
		t.Errorf("Expected first failure, got %v", err)
	}

	if values, err := await(t, All[int]()); err != nil || len(values) != 0 {
		t.Errorf("Expected empty success, got %v (%v)", values, err)
	}
}

func TestCombinators_Any(t *testing.T) {
	a, b := New[string](), New[string]()
	anyOf := Any(a, b)

	a.Fail(data.ErrNotExist)
	b.Resolve("b")

	if v, err := await(t, anyOf); err != nil || v != "b" {
		t.Errorf("Expected 'b', got '%s' (%v)", v, err)
	}

	x, y := New[string](), New[string]()
	none := Any(x, y)
	x.Fail(data.ErrNotExist)
	y.Fail(data.ErrPermission)

	_, err := await(t, none)
	if !errors.Is(err, data.ErrNotExist) || !errors.Is(err, data.ErrPermission) {
		t.Errorf("Expected joined failures, got %v", err)
	}

	if _, err := await(t, Any[string]()); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected ErrInvalid for empty Any, got %v", err)
	}
}

func TestCombinators_SettleAll(t *testing.T) {
	a, b := New[int](), New[int]()
	settled := SettleAll(a, b)

	b.Cancel()
	a.Resolve(1)

	results, err := await(t, settled)
	if err != nil || len(results) != 2 {
		t.Fatalf("Expected two results, got %v (%v)", results, err)
	}
	if results[0].Value != 1 || results[0].Err != nil {
		t.Errorf("Unexpected first result %+v", results[0])
	}
	if !data.IsCanceled(results[1].Err) {
		t.Errorf("Expected second result to be cancelled, got %v", results[1].Err)
	}
}
