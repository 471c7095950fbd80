package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
	"golang.org/x/sync/errgroup"
)

// storageTap reads its source in chunks and emits them downstream. A
// directory source is walked and every file below it becomes a
// sub-resource relative to the source.
type storageTap struct {
	feather.Stage

	session *StorageSession
	source  feather.Resource
	done    *promise.Promise[struct{}]

	ctx    context.Context
	cancel context.CancelFunc
}

type tapEntry struct {
	path *path.Path
	key  string
	size int64
}

func newStorageTap(s *StorageSession, source feather.Resource) *storageTap {
	ctx, cancel := context.WithCancel(s.ctx)
	return &storageTap{
		session: s,
		source:  source,
		done:    promise.New[struct{}](),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (t *storageTap) Source() feather.Resource {
	return t.source
}

func (t *storageTap) Done() *promise.Promise[struct{}] {
	return t.done
}

func (t *storageTap) Start() (*promise.Promise[struct{}], error) {
	if t.Downstream() == nil {
		return nil, fmt.Errorf("%w: tap has no downstream receiver", data.ErrIllegalState)
	}
	if err := t.Transition(feather.EventStart); err != nil {
		return nil, err
	}

	go func() {
		err := t.emit()
		if err != nil && t.ctx.Err() != nil {
			err = data.ErrCanceled
		}
		t.done.Complete(struct{}{}, data.NewResourceError("read", t.source.String(), err))
	}()

	return promise.Resolved(struct{}{}), nil
}

func (t *storageTap) Stop() {
	if err := t.Transition(feather.EventStop); err != nil {
		return
	}
	t.cancel()
	t.done.Cancel()
}

func (t *storageTap) Pause() error {
	return t.Transition(feather.EventPause)
}

func (t *storageTap) Resume() error {
	return t.Transition(feather.EventResume)
}

func (t *storageTap) emit() error {
	if _, err := t.session.Initialize().Await(t.ctx); err != nil {
		return err
	}

	entries, err := t.walk(path.Dot, pathKey(t.source.Path()))
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := t.emitEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// walk lists the files below key in key order.
func (t *storageTap) walk(p *path.Path, key string) ([]tapEntry, error) {
	head, err := t.session.backend.HeadObject(t.ctx, key)
	if err != nil {
		return nil, err
	}
	if head.Mode.IsSymlink() || head.LinkTarget != "" {
		return nil, fmt.Errorf("%w: %w", data.ErrUnsupported, data.ErrIsSymlink)
	}
	if !head.Mode.IsDir() {
		return []tapEntry{{path: p, key: key, size: head.Size}}, nil
	}

	children, err := t.session.backend.ListObjects(t.ctx, key)
	if err != nil {
		return nil, err
	}

	var entries []tapEntry
	for _, child := range children {
		childEntries, err := t.walk(p.AppendLiteral(child.Name()), backend.ChildKey(key, child.Name()))
		if err != nil {
			return nil, err
		}
		entries = append(entries, childEntries...)
	}
	return entries, nil
}

func (t *storageTap) emitEntry(e tapEntry) error {
	down := t.Downstream()
	rel := feather.NewRelative(t.source.Select(e.path), t.source, e.path)

	if err := t.AwaitRunning(t.ctx); err != nil {
		return err
	}
	initialized, err := down.Initialize(rel)
	if err != nil {
		return err
	}
	if _, err := initialized.Await(t.ctx); err != nil {
		return err
	}

	chunk := int64(t.session.options.ChunkSize)
	parallel := 1
	if down.Random() {
		parallel = t.session.options.Parallel
	}

	group, ctx := errgroup.WithContext(t.ctx)
	group.SetLimit(parallel)
	for offset := int64(0); offset < e.size; offset += chunk {
		if err := t.AwaitRunning(ctx); err != nil {
			break
		}
		group.Go(func() error {
			return t.read(ctx, rel, e.key, offset, min(chunk, e.size-offset))
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	if err := t.AwaitRunning(t.ctx); err != nil {
		return err
	}

	finalized, err := down.Finalize(rel)
	if err != nil {
		return err
	}
	_, err = finalized.Await(t.ctx)
	return err
}

// read reads one chunk and drains it. Backends may return short reads, so
// the chunk is drained piecewise until length bytes went through.
func (t *storageTap) read(ctx context.Context, rel feather.Relative[feather.Resource], key string, offset, length int64) error {
	for length > 0 {
		if err := t.AwaitRunning(ctx); err != nil {
			return err
		}

		buf := make([]byte, length)
		n, err := t.session.backend.ReadObject(ctx, key, offset, buf)
		if n > 0 {
			if err := t.Downstream().Drain(feather.Rewrap(rel, data.NewSlice(buf[:n], offset))); err != nil {
				return err
			}
			offset += int64(n)
			length -= int64(n)
		}

		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		case n == 0:
			return fmt.Errorf("%w: empty read at offset %d", io.ErrNoProgress, offset)
		}
	}
	return nil
}
