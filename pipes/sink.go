package pipes

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/promise"
)

// sink implements the lifecycle shared by the sinks of this package. None
// of them has a destination resource.
type sink struct {
	feather.Stage
}

func (s *sink) Destination() feather.Resource {
	return feather.Resource{}
}

func (s *sink) Start() (*promise.Promise[struct{}], error) {
	if err := s.Transition(feather.EventStart); err != nil {
		return nil, err
	}
	return promise.Resolved(struct{}{}), nil
}

func (s *sink) Stop() {
	_ = s.Transition(feather.EventStop)
}

func (s *sink) Pause() error {
	if err := s.Transition(feather.EventPause); err != nil {
		return err
	}
	if up := s.Upstream(); up != nil {
		return up.Pause()
	}
	return nil
}

func (s *sink) Resume() error {
	if err := s.Transition(feather.EventResume); err != nil {
		return err
	}
	if up := s.Upstream(); up != nil {
		return up.Resume()
	}
	return nil
}

// AggregatorSink collects the content of every sub-resource in memory.
type AggregatorSink struct {
	sink

	mu       sync.Mutex
	contents map[string][]byte
	complete map[string]bool
}

func NewAggregatorSink() *AggregatorSink {
	return &AggregatorSink{
		contents: make(map[string][]byte),
		complete: make(map[string]bool),
	}
}

func (a *AggregatorSink) Random() bool {
	return true
}

func (a *AggregatorSink) Concurrency() int {
	return 0
}

func (a *AggregatorSink) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := a.Begin(rel, 0); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.contents[rel.Key()] = []byte{}
	a.complete[rel.Key()] = false
	return promise.Resolved(struct{}{}), nil
}

// Drain places the slice at its offset. Slices without an offset are
// appended.
func (a *AggregatorSink) Drain(rel feather.Relative[data.Slice]) error {
	if err := a.Check(rel); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	content := a.contents[rel.Key()]
	offset := rel.Value.Offset()
	if !rel.Value.HasOffset() {
		offset = int64(len(content))
	}

	if end := offset + int64(rel.Value.Len()); end > int64(len(content)) {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[offset:], rel.Value.Bytes())
	a.contents[rel.Key()] = content
	return nil
}

func (a *AggregatorSink) Finalize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := a.End(rel); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.complete[rel.Key()] = true
	return promise.Resolved(struct{}{}), nil
}

// Get returns the content collected for key and whether it was finalized.
func (a *AggregatorSink) Get(key string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	content, exists := a.contents[key]
	return content, exists && a.complete[key]
}

// Keys returns the collected sub-resources in order.
func (a *AggregatorSink) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]string, 0, len(a.contents))
	for key := range a.contents {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// HexDumpSink writes a hex dump of everything it receives, one resource at
// a time.
type HexDumpSink struct {
	sink

	mu sync.Mutex
	w  io.Writer
}

func NewHexDumpSink(w io.Writer) *HexDumpSink {
	return &HexDumpSink{w: w}
}

func (h *HexDumpSink) Random() bool {
	return false
}

func (h *HexDumpSink) Concurrency() int {
	return 1
}

func (h *HexDumpSink) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := h.Begin(rel, h.Concurrency()); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := fmt.Fprintf(h.w, "== %s ==\n", rel.Key()); err != nil {
		return nil, err
	}
	return promise.Resolved(struct{}{}), nil
}

func (h *HexDumpSink) Drain(rel feather.Relative[data.Slice]) error {
	if err := h.Check(rel); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := fmt.Fprintf(h.w, "-- %s --\n", rel.Value); err != nil {
		return err
	}
	_, err := io.WriteString(h.w, hex.Dump(rel.Value.Bytes()))
	return err
}

func (h *HexDumpSink) Finalize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := h.End(rel); err != nil {
		return nil, err
	}
	return promise.Resolved(struct{}{}), nil
}

// DiscardSink accepts and drops everything.
type DiscardSink struct {
	sink
}

func NewDiscardSink() *DiscardSink {
	return &DiscardSink{}
}

func (d *DiscardSink) Random() bool {
	return true
}

func (d *DiscardSink) Concurrency() int {
	return 0
}

func (d *DiscardSink) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := d.Begin(rel, 0); err != nil {
		return nil, err
	}
	return promise.Resolved(struct{}{}), nil
}

func (d *DiscardSink) Drain(rel feather.Relative[data.Slice]) error {
	return d.Check(rel)
}

func (d *DiscardSink) Finalize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	if err := d.End(rel); err != nil {
		return nil, err
	}
	return promise.Resolved(struct{}{}), nil
}
