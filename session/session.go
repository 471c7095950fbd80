// Package session turns object storage backends into feather sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/log"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
)

// StorageSession is a feather.Session over an ObjectStorageBackend. The
// backend is opened on Initialize and closed on Close. Every operation runs
// on its own goroutine and is canceled when the session closes.
type StorageSession struct {
	backend backend.ObjectStorageBackend
	options *Options
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	initialized *promise.Promise[feather.Session]
	closed      *promise.Promise[struct{}]
}

var _ feather.Session = (*StorageSession)(nil)

func NewStorageSession(b backend.ObjectStorageBackend, opts ...Option) (*StorageSession, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil backend", data.ErrInvalid)
	}

	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StorageSession{
		backend: b,
		options: options,
		logger:  logger.Named("session").With("backend", b.Name()),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Backend returns the backend this session operates on.
func (s *StorageSession) Backend() backend.ObjectStorageBackend {
	return s.backend
}

func (s *StorageSession) Key() string {
	return s.backend.Address()
}

func (s *StorageSession) Select(p *path.Path) feather.Resource {
	return feather.NewResource(s, p)
}

// Root returns the resource at the backend root.
func (s *StorageSession) Root() feather.Resource {
	return s.Select(path.Root)
}

func (s *StorageSession) Initialize() *promise.Promise[feather.Session] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed != nil {
		return promise.Failed[feather.Session](data.ErrClosed)
	}
	if s.initialized != nil {
		return s.initialized
	}

	s.initialized = promise.New[feather.Session]()
	go func() {
		if err := s.backend.Open(s.ctx); err != nil {
			if !errors.Is(err, data.ErrOpenFailed) {
				err = fmt.Errorf("%w: %v", data.ErrOpenFailed, err)
			}
			s.logger.Error("Failed to open '%s': %v", s.Key(), err)
			s.initialized.Fail(err)
			return
		}

		s.logger.Info("Opened session '%s'", s.Key())
		s.initialized.Resolve(s)
	}()

	return s.initialized
}

func (s *StorageSession) Stat(r feather.Resource) *promise.Promise[*data.Stat] {
	key, err := s.keyOf(r)
	if err != nil {
		return promise.Failed[*data.Stat](err)
	}

	return run(s, "stat", r, func(ctx context.Context) (*data.Stat, error) {
		head, err := s.backend.HeadObject(ctx, key)
		if err != nil {
			return nil, err
		}

		stat := head.ToStat()
		if !stat.Dir {
			return stat, nil
		}

		children, err := s.backend.ListObjects(ctx, key)
		if err != nil {
			return nil, err
		}

		files := make([]*data.Stat, 0, len(children))
		for _, child := range children {
			files = append(files, child.ToStat())
		}
		return stat.SetFiles(files), nil
	})
}

func (s *StorageSession) Mkdir(r feather.Resource) (*promise.Promise[struct{}], error) {
	key, err := s.keyOf(r)
	if err != nil {
		return nil, err
	}

	return run(s, "mkdir", r, func(ctx context.Context) (struct{}, error) {
		_, err := s.backend.CreateObject(ctx, key, data.DefaultDirMode)
		return struct{}{}, err
	}), nil
}

// Unlink removes a file or an empty directory.
func (s *StorageSession) Unlink(r feather.Resource) (*promise.Promise[struct{}], error) {
	key, err := s.keyOf(r)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: cannot unlink the session root", data.ErrInvalid)
	}

	return run(s, "unlink", r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.DeleteObject(ctx, key, false)
	}), nil
}

func (s *StorageSession) Tap(r feather.Resource) (feather.Tap, error) {
	if _, err := s.keyOf(r); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return newStorageTap(s, r), nil
}

func (s *StorageSession) Sink(r feather.Resource) (feather.Sink, error) {
	if _, err := s.keyOf(r); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return newStorageSink(s, r), nil
}

func (s *StorageSession) Close() *promise.Promise[struct{}] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed != nil {
		return s.closed
	}

	s.closed = promise.New[struct{}]()
	s.cancel()

	opened := s.initialized
	go func() {
		var err error
		if opened != nil {
			// Opening may still be in flight; the canceled context ends it.
			<-opened.Done()
			if opened.IsSuccessful() {
				err = s.backend.Close(context.Background())
			}
		}

		s.logger.Info("Closed session '%s'", s.Key())
		s.closed.Complete(struct{}{}, err)
	}()

	return s.closed
}

func (s *StorageSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed != nil
}

func (s *StorageSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed != nil {
		return data.ErrClosed
	}
	return nil
}

// keyOf converts a resource of this session into a backend key.
func (s *StorageSession) keyOf(r feather.Resource) (string, error) {
	if r.IsZero() || r.Session().Key() != s.Key() {
		return "", fmt.Errorf("%w: resource '%s' does not belong to '%s'", data.ErrInvalid, r, s.Key())
	}
	if !r.IsSingleton() {
		return "", fmt.Errorf("%w: glob resource '%s'", data.ErrUnsupported, r)
	}
	return pathKey(r.Path()), nil
}

func pathKey(p *path.Path) string {
	return strings.Join(p.Explode(), "/")
}

// run executes fn once the session is initialized. Failures are wrapped
// with the operation and the resource they belong to.
func run[T any](s *StorageSession, op string, r feather.Resource, fn func(ctx context.Context) (T, error)) *promise.Promise[T] {
	if err := s.checkOpen(); err != nil {
		return promise.Failed[T](err)
	}

	return promise.Then(s.Initialize(), func(feather.Session) *promise.Promise[T] {
		result := promise.New[T]()
		go func() {
			if err := s.ctx.Err(); err != nil {
				result.Fail(data.ErrClosed)
				return
			}

			v, err := fn(s.ctx)
			if err != nil && s.ctx.Err() != nil {
				err = data.ErrClosed
			}
			result.Complete(v, data.NewResourceError(op, r.String(), err))
		}()
		return result
	})
}
