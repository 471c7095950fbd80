// Package pipes provides pipeline stages that are not bound to a session:
// in-memory taps, collecting and dumping sinks and a checksum filter.
package pipes

import (
	"context"
	"fmt"
	"sort"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
)

// DefaultChunkSize is the slice size emitted by in-memory taps.
const DefaultChunkSize = 32 * 1024

// BytesTap emits in-memory content. Every entry is a sub-resource keyed by
// its path relative to the tap; "." is the tap itself.
type BytesTap struct {
	feather.Stage

	entries   map[string][]byte
	chunkSize int
	done      *promise.Promise[struct{}]

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBytesTap(entries map[string][]byte) *BytesTap {
	ctx, cancel := context.WithCancel(context.Background())
	return &BytesTap{
		entries:   entries,
		chunkSize: DefaultChunkSize,
		done:      promise.New[struct{}](),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewStringTap emits s as a single resource.
func NewStringTap(s string) *BytesTap {
	return NewBytesTap(map[string][]byte{".": []byte(s)})
}

// WithChunkSize changes the slice size. It must be called before Start.
func (t *BytesTap) WithChunkSize(n int) *BytesTap {
	if n > 0 {
		t.chunkSize = n
	}
	return t
}

// Source is the zero resource; in-memory content has no session.
func (t *BytesTap) Source() feather.Resource {
	return feather.Resource{}
}

func (t *BytesTap) Done() *promise.Promise[struct{}] {
	return t.done
}

func (t *BytesTap) Start() (*promise.Promise[struct{}], error) {
	if t.Downstream() == nil {
		return nil, fmt.Errorf("%w: tap has no downstream receiver", data.ErrIllegalState)
	}

	keys := make([]string, 0, len(t.entries))
	paths := make(map[string]*path.Path, len(t.entries))
	for key := range t.entries {
		p, err := path.Parse(key)
		if err != nil {
			return nil, err
		}
		if p.IsAbsolute() || p.IsGlob() {
			return nil, fmt.Errorf("%w: tap entry '%s' must be a relative literal path", data.ErrInvalidPath, key)
		}
		keys = append(keys, key)
		paths[key] = p
	}
	sort.Strings(keys)

	if err := t.Transition(feather.EventStart); err != nil {
		return nil, err
	}

	go func() {
		var err error
		for _, key := range keys {
			if err = t.emit(paths[key], t.entries[key]); err != nil {
				break
			}
		}
		t.done.Complete(struct{}{}, err)
	}()

	return promise.Resolved(struct{}{}), nil
}

func (t *BytesTap) emit(p *path.Path, content []byte) error {
	down := t.Downstream()
	rel := feather.TrustedRelative(feather.Resource{}, feather.Resource{}, p, feather.Resource{})

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

	for offset := 0; offset < len(content); offset += t.chunkSize {
		if err := t.AwaitRunning(t.ctx); err != nil {
			return err
		}

		end := min(offset+t.chunkSize, len(content))
		slice := data.NewSlice(content[offset:end], int64(offset))
		if err := down.Drain(feather.Rewrap(rel, slice)); err != nil {
			return err
		}
	}

	finalized, err := down.Finalize(rel)
	if err != nil {
		return err
	}
	_, err = finalized.Await(t.ctx)
	return err
}

func (t *BytesTap) Stop() {
	if err := t.Transition(feather.EventStop); err != nil {
		return
	}
	t.cancel()
	t.done.Cancel()
}

func (t *BytesTap) Pause() error {
	return t.Transition(feather.EventPause)
}

func (t *BytesTap) Resume() error {
	return t.Transition(feather.EventResume)
}
