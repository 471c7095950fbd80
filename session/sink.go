package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/promise"
)

// storageSink writes the slices it receives below its destination. Writes
// are queued and applied by a single writer goroutine; a full queue pauses
// everything upstream until the writer has caught up.
type storageSink struct {
	feather.Stage

	session     *StorageSession
	destination feather.Resource

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	queue []pendingWrite
	files map[string]*sinkFile
	wake  chan struct{}

	// flow serializes back-pressure decisions.
	flow     sync.Mutex
	throttle bool
}

type pendingWrite struct {
	file  *sinkFile
	slice data.Slice
}

// sinkFile tracks one open sub-resource.
type sinkFile struct {
	key       string
	next      int64
	pending   int
	err       error
	finalized *promise.Promise[struct{}]
}

func newStorageSink(s *StorageSession, destination feather.Resource) *storageSink {
	ctx, cancel := context.WithCancel(s.ctx)
	return &storageSink{
		session:     s,
		destination: destination,
		ctx:         ctx,
		cancel:      cancel,
		files:       make(map[string]*sinkFile),
		wake:        make(chan struct{}, 1),
	}
}

func (s *storageSink) Destination() feather.Resource {
	return s.destination
}

func (s *storageSink) Random() bool {
	return s.session.backend.GetCapabilities().Contains(backend.CapabilityRandomWrite)
}

func (s *storageSink) Concurrency() int {
	return 0
}

func (s *storageSink) Start() (*promise.Promise[struct{}], error) {
	if err := s.Transition(feather.EventStart); err != nil {
		return nil, err
	}

	go s.write()
	return promise.Resolved(struct{}{}), nil
}

func (s *storageSink) Stop() {
	if err := s.Transition(feather.EventStop); err != nil {
		return
	}
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, file := range s.files {
		if file.finalized != nil {
			file.finalized.Cancel()
		}
	}
	s.queue = nil
}

// Pause pauses the sink and everything upstream of it.
func (s *storageSink) Pause() error {
	if err := s.Transition(feather.EventPause); err != nil {
		return err
	}
	if up := s.Upstream(); up != nil {
		return up.Pause()
	}
	return nil
}

func (s *storageSink) Resume() error {
	if err := s.Transition(feather.EventResume); err != nil {
		return err
	}
	if up := s.Upstream(); up != nil {
		return up.Resume()
	}
	return nil
}

// Initialize creates the destination object, truncating an existing one and
// creating missing parent directories.
func (s *storageSink) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	key := pathKey(s.destination.Path().Append(rel.Path))
	if err := s.Begin(rel, s.Concurrency()); err != nil {
		return nil, err
	}

	file := &sinkFile{key: key}
	s.mu.Lock()
	s.files[rel.Key()] = file
	s.mu.Unlock()

	return run(s.session, "create", s.destination.Select(rel.Path), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.create(ctx, key)
	}), nil
}

func (s *storageSink) create(ctx context.Context, key string) error {
	b := s.session.backend

	head, err := b.HeadObject(ctx, key)
	switch {
	case err == nil && head.Mode.IsDir():
		return data.ErrIsDirectory
	case err == nil:
		return b.TruncateObject(ctx, key, 0)
	case !errors.Is(err, data.ErrNotExist):
		return err
	}

	if err := s.mkdirAll(ctx, backend.ParentKey(key)); err != nil {
		return err
	}
	_, err = b.CreateObject(ctx, key, data.DefaultFileMode)
	return err
}

func (s *storageSink) mkdirAll(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	head, err := s.session.backend.HeadObject(ctx, key)
	switch {
	case err == nil && head.Mode.IsDir():
		return nil
	case err == nil:
		return data.ErrNotDirectory
	case !errors.Is(err, data.ErrNotExist):
		return err
	}

	if err := s.mkdirAll(ctx, backend.ParentKey(key)); err != nil {
		return err
	}
	if _, err := s.session.backend.CreateObject(ctx, key, data.DefaultDirMode); err != nil && !errors.Is(err, data.ErrExist) {
		return err
	}
	return nil
}

func (s *storageSink) Drain(rel feather.Relative[data.Slice]) error {
	if err := s.Check(rel); err != nil {
		return err
	}

	s.mu.Lock()
	file, exists := s.files[rel.Key()]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: drain '%s' before initialize", data.ErrIllegalState, rel)
	}
	if file.err != nil {
		s.mu.Unlock()
		return file.err
	}
	if rel.Value.Len() == 0 {
		s.mu.Unlock()
		return nil
	}

	slice := rel.Value
	if !slice.HasOffset() {
		slice = data.NewSlice(slice.Bytes(), file.next)
	}
	file.next = max(file.next, slice.End())

	file.pending++
	s.queue = append(s.queue, pendingWrite{file: file, slice: slice})
	s.mu.Unlock()

	s.signal()
	s.regulate()
	return nil
}

// regulate pauses the upstream once the write queue reaches the high-water
// mark and resumes it at the low-water mark. It runs after every change of
// the queue, so the last call always sees the final queue length.
func (s *storageSink) regulate() {
	s.flow.Lock()
	defer s.flow.Unlock()

	s.mu.Lock()
	queued := len(s.queue)
	s.mu.Unlock()

	switch {
	case !s.throttle && queued >= s.session.options.HighWater:
		s.throttle = true
		// The upstream may already be paused by its owner.
		_ = s.Pause()
	case s.throttle && queued <= s.session.options.LowWater:
		s.throttle = false
		_ = s.Resume()
	}
}

// Finalize resolves once every queued slice of rel has been written.
func (s *storageSink) Finalize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := s.End(rel); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, exists := s.files[rel.Key()]
	if !exists {
		return nil, fmt.Errorf("%w: finalize '%s' before initialize", data.ErrIllegalState, rel)
	}
	delete(s.files, rel.Key())

	file.finalized = promise.New[struct{}]()
	if file.pending == 0 {
		file.finalized.Complete(struct{}{}, file.err)
	}
	return file.finalized, nil
}

func (s *storageSink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// write applies queued slices until the sink is stopped.
func (s *storageSink) write() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.ctx.Done():
				return
			}
		}
		w := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		var err error
		if w.file.err == nil {
			_, err = s.session.backend.WriteObject(s.ctx, w.file.key, w.slice.Offset(), w.slice.Bytes())
			if err != nil {
				err = data.NewResourceError("write", w.file.key, err)
			}
		}

		s.mu.Lock()
		w.file.pending--
		if err != nil && w.file.err == nil {
			w.file.err = err
		}
		if w.file.pending == 0 && w.file.finalized != nil {
			w.file.finalized.Complete(struct{}{}, w.file.err)
		}
		s.mu.Unlock()

		s.regulate()
	}
}
