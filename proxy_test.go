package feather_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/backend/direct"
	"github.com/mwantia/feather/backend/ephemeral"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/log"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/pipes"
	"github.com/mwantia/feather/promise"
	"github.com/mwantia/feather/session"
)

func newSession(t *testing.T, b backend.ObjectStorageBackend) *session.StorageSession {
	t.Helper()

	s, err := session.NewStorageSession(b, session.WithChunkSize(256))
	if err != nil {
		t.Fatalf("NewStorageSession failed: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// populate creates dirs and files below the backend root. Files hold their
// own key repeated n times.
func populate(t *testing.T, b backend.ObjectStorageBackend, dirs []string, files []string, n int) int64 {
	t.Helper()

	ctx := t.Context()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, dir := range dirs {
		if _, err := b.CreateObject(ctx, dir, data.DefaultDirMode); err != nil {
			t.Fatalf("CreateObject %s failed: %v", dir, err)
		}
	}

	var total int64
	for _, file := range files {
		if _, err := b.CreateObject(ctx, file, data.DefaultFileMode); err != nil {
			t.Fatalf("CreateObject %s failed: %v", file, err)
		}
		content := bytes.Repeat([]byte(file), n)
		if _, err := b.WriteObject(ctx, file, 0, content); err != nil {
			t.Fatalf("WriteObject %s failed: %v", file, err)
		}
		total += int64(len(content))
	}
	return total
}

func content(t *testing.T, b backend.ObjectStorageBackend, key string) []byte {
	t.Helper()

	stat, err := b.HeadObject(t.Context(), key)
	if err != nil {
		t.Fatalf("HeadObject %s failed: %v", key, err)
	}
	buf := make([]byte, stat.Size)
	for offset := 0; offset < len(buf); {
		n, err := b.ReadObject(t.Context(), key, int64(offset), buf[offset:])
		if err != nil {
			t.Fatalf("ReadObject %s failed: %v", key, err)
		}
		offset += n
	}
	return buf
}

func newTransfer(t *testing.T, src, dst feather.Resource, opts ...feather.TransferOption) *feather.ProxyTransfer {
	t.Helper()

	opts = append([]feather.TransferOption{feather.WithLogger(log.Discard())}, opts...)
	transfer, err := feather.NewProxyTransfer(src, dst, opts...)
	if err != nil {
		t.Fatalf("NewProxyTransfer failed: %v", err)
	}
	return transfer
}

func TestProxyTransfer_Tree(t *testing.T) {
	sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
	dirs := []string{"a", "a/b", "c"}
	files := []string{"root.txt", "a/one", "a/two", "a/b/three", "c/four"}
	total := populate(t, sb, dirs, files, 100)

	src, dst := newSession(t, sb), newSession(t, db)
	transfer := newTransfer(t, src.Root(), dst.Select(path.MustParse("/copy")))

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := done.Await(t.Context()); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if !transfer.OnStart().IsSuccessful() {
		t.Errorf("Expected OnStart to be resolved")
	}

	for _, file := range files {
		expected := bytes.Repeat([]byte(file), 100)
		if got := content(t, db, "copy/"+file); !bytes.Equal(got, expected) {
			t.Errorf("Content of %s: got %d bytes, expected %d", file, len(got), len(expected))
		}
	}

	stats := transfer.Stats()
	if stats.Files != int64(len(files)) {
		t.Errorf("Expected %d files, got %d", len(files), stats.Files)
	}
	if stats.Directories != int64(len(dirs)+1) {
		t.Errorf("Expected %d listings, got %d", len(dirs)+1, stats.Directories)
	}
	if stats.Queued+stats.InFlight+stats.Listing != 0 {
		t.Errorf("Expected no outstanding work, got %+v", stats)
	}
	if transfer.Progress().Done() != total || transfer.Progress().Total() != total {
		t.Errorf("Expected progress %d/%d, got %s", total, total, transfer.Progress())
	}
	if transfer.Throughput().Total() != total {
		t.Errorf("Expected throughput total %d, got %d", total, transfer.Throughput().Total())
	}
}

func TestProxyTransfer_SingleFile(t *testing.T) {
	sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
	total := populate(t, sb, nil, []string{"file.bin"}, 1000)

	src, dst := newSession(t, sb), newSession(t, db)
	transfer := newTransfer(t, src.Select(path.MustParse("/file.bin")), dst.Select(path.MustParse("/renamed.bin")))

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := done.Await(t.Context()); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if got := content(t, db, "renamed.bin"); int64(len(got)) != total {
		t.Errorf("Expected %d bytes, got %d", total, len(got))
	}
	if stats := transfer.Stats(); stats.Files != 1 || stats.Directories != 0 {
		t.Errorf("Expected 1 file and no listings, got %+v", stats)
	}
}

func TestProxyTransfer_Concurrency(t *testing.T) {
	var files []string
	for i := range 24 {
		files = append(files, fmt.Sprintf("file-%02d", i))
	}

	for _, limit := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("limit-%d", limit), func(tst *testing.T) {
			sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
			populate(tst, sb, nil, files, 50)

			src, dst := newSession(tst, sb), newSession(tst, db)
			transfer := newTransfer(tst, src.Root(), dst.Root(), feather.WithConcurrency(limit))

			done, err := transfer.Start()
			if err != nil {
				tst.Fatalf("Start failed: %v", err)
			}
			if _, err := done.Await(tst.Context()); err != nil {
				tst.Fatalf("Transfer failed: %v", err)
			}

			stats := transfer.Stats()
			if stats.PeakInFlight > limit || stats.PeakInFlight < 1 {
				tst.Errorf("Expected peak in flight within [1, %d], got %d", limit, stats.PeakInFlight)
			}
			if stats.Files != int64(len(files)) {
				tst.Errorf("Expected %d files, got %d", len(files), stats.Files)
			}
		})
	}
}

// gauge tracks a current count and the highest value it reached.
type gauge struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (g *gauge) inc() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current++
	g.peak = max(g.peak, g.current)
}

func (g *gauge) dec() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current--
}

func (g *gauge) values() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.current, g.peak
}

// countingFilter counts the pipes running at the same time, from Start to
// Stop, and the sub-resources open between Initialize and Finalize.
type countingFilter struct {
	feather.Passthrough

	running *gauge
	open    *gauge
	started atomic.Bool
	stopped sync.Once
}

func (f *countingFilter) Start() (*promise.Promise[struct{}], error) {
	started, err := f.Passthrough.Start()
	if err == nil {
		f.running.inc()
		f.started.Store(true)
	}
	return started, err
}

func (f *countingFilter) Stop() {
	f.Passthrough.Stop()
	if f.started.Load() {
		f.stopped.Do(f.running.dec)
	}
}

func (f *countingFilter) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	f.open.inc()
	return f.Passthrough.Initialize(rel)
}

func (f *countingFilter) Finalize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	f.open.dec()
	return f.Passthrough.Finalize(rel)
}

func TestProxyTransfer_ConcurrentSinks(t *testing.T) {
	var files []string
	for i := range 32 {
		files = append(files, fmt.Sprintf("file-%02d", i))
	}

	for _, limit := range []int{1, 4} {
		t.Run(fmt.Sprintf("limit-%d", limit), func(tst *testing.T) {
			sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
			populate(tst, sb, nil, files, 200)

			running, open := &gauge{}, &gauge{}
			src, dst := newSession(tst, sb), newSession(tst, db)
			transfer := newTransfer(tst, src.Root(), dst.Root(),
				feather.WithConcurrency(limit),
				feather.WithFilters(func(feather.Relative[feather.Resource]) []feather.Filter {
					return []feather.Filter{&countingFilter{running: running, open: open}}
				}),
			)

			done, err := transfer.Start()
			if err != nil {
				tst.Fatalf("Start failed: %v", err)
			}
			if _, err := done.Await(tst.Context()); err != nil {
				tst.Fatalf("Transfer failed: %v", err)
			}

			if current, peak := open.values(); current != 0 || peak > limit {
				tst.Errorf("Expected at most %d open sinks and none left, got peak %d and %d open", limit, peak, current)
			}
			if current, peak := running.values(); current != 0 || peak > limit {
				tst.Errorf("Expected at most %d running pipes and none left, got peak %d and %d running", limit, peak, current)
			}
		})
	}
}

func TestProxyTransfer_ReleasesGoroutines(t *testing.T) {
	var files []string
	for i := range 100 {
		files = append(files, fmt.Sprintf("file-%03d", i))
	}

	sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
	populate(t, sb, nil, files, 20)
	src, dst := newSession(t, sb), newSession(t, db)

	copyTo := func(target string) {
		transfer := newTransfer(t, src.Root(), dst.Select(path.MustParse(target)))
		done, err := transfer.Start()
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if _, err := done.Await(t.Context()); err != nil {
			t.Fatalf("Transfer failed: %v", err)
		}
	}

	// The first transfer opens both sessions and warms up the dispatcher.
	copyTo("/warmup")
	settle := func(limit int) int {
		var n int
		for range 50 {
			runtime.GC()
			if n = runtime.NumGoroutine(); n <= limit {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		return n
	}
	before := settle(0)

	copyTo("/copy")
	if after := settle(before + 2); after > before+2 {
		t.Errorf("Expected goroutines to return to %d after the transfer, got %d", before, after)
	}
}

// failingFilter rejects the first slice of one sub-resource.
type failingFilter struct {
	feather.Passthrough
}

var errInjected = errors.New("injected failure")

func (f *failingFilter) Drain(rel feather.Relative[data.Slice]) error {
	return errInjected
}

func TestProxyTransfer_PartialFailure(t *testing.T) {
	sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
	files := []string{"good-1", "bad", "good-2", "good-3"}
	populate(t, sb, nil, files, 10)

	src, dst := newSession(t, sb), newSession(t, db)
	transfer := newTransfer(t, src.Root(), dst.Root(),
		feather.WithConcurrency(1),
		feather.WithFilters(func(rel feather.Relative[feather.Resource]) []feather.Filter {
			if rel.Path.Name() == "bad" {
				return []feather.Filter{&failingFilter{}}
			}
			return nil
		}),
	)

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err = done.Await(t.Context())

	var transferErr *feather.TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("Expected TransferError, got %v", err)
	}
	if len(transferErr.Failures) != 1 || transferErr.Failures[0].Path.Name() != "bad" {
		t.Fatalf("Expected exactly 'bad' to fail, got %v", transferErr)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("Expected the injected error in the chain, got %v", err)
	}

	for _, file := range []string{"good-1", "good-2", "good-3"} {
		if got := content(t, db, file); !bytes.Equal(got, bytes.Repeat([]byte(file), 10)) {
			t.Errorf("Expected %s to be transferred", file)
		}
	}
	if stats := transfer.Stats(); stats.Files != 4 || stats.Failed != 1 {
		t.Errorf("Expected 4 files with 1 failure, got %+v", stats)
	}
}

func TestProxyTransfer_Symlink(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "file"), []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "file"), filepath.Join(root, "link")); err != nil {
		t.Skipf("Symlinks unavailable: %v", err)
	}

	sb, err := direct.NewDirectBackend(root)
	if err != nil {
		t.Fatalf("NewDirectBackend failed: %v", err)
	}
	db := ephemeral.NewEphemeralBackend()

	src, dst := newSession(t, sb), newSession(t, db)
	transfer := newTransfer(t, src.Root(), dst.Root())

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err = done.Await(t.Context())
	if !errors.Is(err, data.ErrIsSymlink) || !errors.Is(err, data.ErrUnsupported) {
		t.Fatalf("Expected unsupported symlink failure, got %v", err)
	}
	if got := content(t, db, "file"); string(got) != "content" {
		t.Errorf("Expected regular file to be transferred, got %q", got)
	}
	if _, err := db.HeadObject(t.Context(), "link"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected link to be skipped, got %v", err)
	}
}

func TestProxyTransfer_MissingSource(t *testing.T) {
	src, dst := newSession(t, ephemeral.NewEphemeralBackend()), newSession(t, ephemeral.NewEphemeralBackend())
	transfer := newTransfer(t, src.Select(path.MustParse("/missing")), dst.Root())

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := done.Await(t.Context()); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
	if _, err := transfer.Start(); !errors.Is(err, data.ErrIllegalState) {
		t.Errorf("Expected ErrIllegalState restarting, got %v", err)
	}
}

// holdFilter never completes Initialize, keeping every transfer in flight.
type holdFilter struct {
	feather.Passthrough

	once    *sync.Once
	entered chan struct{}
}

func (h *holdFilter) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if _, err := h.Passthrough.Initialize(rel); err != nil {
		return nil, err
	}
	h.once.Do(func() {
		close(h.entered)
	})
	return promise.New[struct{}](), nil
}

func TestProxyTransfer_Stop(t *testing.T) {
	sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
	populate(t, sb, []string{"dir"}, []string{"dir/a", "dir/b", "dir/c"}, 10)

	var (
		once    sync.Once
		entered = make(chan struct{})
		holds   []*holdFilter
		mu      sync.Mutex
	)

	src, dst := newSession(t, sb), newSession(t, db)
	transfer := newTransfer(t, src.Root(), dst.Root(),
		feather.WithFilters(func(feather.Relative[feather.Resource]) []feather.Filter {
			hold := &holdFilter{once: &once, entered: entered}
			mu.Lock()
			holds = append(holds, hold)
			mu.Unlock()
			return []feather.Filter{hold}
		}),
	)

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-entered

	transfer.Stop()
	if _, err := done.Await(t.Context()); !errors.Is(err, data.ErrCanceled) {
		t.Fatalf("Expected ErrCanceled, got %v", err)
	}
	if !done.IsCanceled() {
		t.Errorf("Expected OnStop to report cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, hold := range holds {
		if state := hold.State(); state != feather.StateStopped && state != feather.StateNotStarted {
			t.Errorf("Expected filter to be stopped, got %s", state)
		}
	}
}

func TestProxyTransfer_StopWhileAssembling(t *testing.T) {
	sb, db := ephemeral.NewEphemeralBackend(), ephemeral.NewEphemeralBackend()
	populate(t, sb, nil, []string{"only"}, 10)

	entered, release := make(chan struct{}), make(chan struct{})
	filter := &feather.Passthrough{}

	src, dst := newSession(t, sb), newSession(t, db)
	transfer := newTransfer(t, src.Root(), dst.Root(),
		feather.WithFilters(func(feather.Relative[feather.Resource]) []feather.Filter {
			close(entered)
			<-release
			return []feather.Filter{filter}
		}),
	)

	done, err := transfer.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-entered

	transfer.Stop()
	close(release)
	if _, err := done.Await(t.Context()); !errors.Is(err, data.ErrCanceled) {
		t.Fatalf("Expected ErrCanceled, got %v", err)
	}

	for range 100 {
		if filter.State() == feather.StateStopped {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("Expected the assembled pipe to be stopped, filter is %s", filter.State())
}

func TestProxyTransfer_Invalid(t *testing.T) {
	s := newSession(t, ephemeral.NewEphemeralBackend())

	if _, err := feather.NewProxyTransfer(feather.Resource{}, s.Root()); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected ErrInvalid without source, got %v", err)
	}
	if _, err := feather.NewProxyTransfer(s.Select(path.MustParse("/*.txt")), s.Root()); !errors.Is(err, data.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for glob source, got %v", err)
	}
	if _, err := feather.NewProxyTransfer(s.Root(), s.Root(), feather.WithClock(nil)); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected ErrInvalid for nil clock, got %v", err)
	}
}

func TestPipeline_SessionToAggregator(t *testing.T) {
	sb := ephemeral.NewEphemeralBackend()
	populate(t, sb, []string{"d"}, []string{"d/x", "d/y"}, 3)
	src := newSession(t, sb)

	tap, err := src.Select(path.MustParse("/d")).Tap()
	if err != nil {
		t.Fatalf("Tap failed: %v", err)
	}
	sink := pipes.NewAggregatorSink()
	pipe, err := feather.TapPipe(tap).Attach(feather.SinkPipe(sink))
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

	if got, ok := sink.Get("x"); !ok || string(got) != "d/xd/xd/x" {
		t.Errorf("Expected %q, got %q", "d/xd/xd/x", got)
	}
}
