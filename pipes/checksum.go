package pipes

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/promise"
	"github.com/zeebo/blake3"
)

// Checksum is a filter computing a BLAKE3 digest per sub-resource. Digests
// need the content in order, so it reports Random as false and rejects
// slices that skip ahead.
type Checksum struct {
	feather.Passthrough

	mu      sync.Mutex
	hashers map[string]*checksumState
	sums    map[string][]byte
}

type checksumState struct {
	hasher *blake3.Hasher
	next   int64
}

func NewChecksum() *Checksum {
	return &Checksum{
		hashers: make(map[string]*checksumState),
		sums:    make(map[string][]byte),
	}
}

func (c *Checksum) Random() bool {
	return false
}

func (c *Checksum) Initialize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	c.mu.Lock()
	c.hashers[rel.Key()] = &checksumState{hasher: blake3.New()}
	delete(c.sums, rel.Key())
	c.mu.Unlock()

	return c.Passthrough.Initialize(rel)
}

func (c *Checksum) Drain(rel feather.Relative[data.Slice]) error {
	c.mu.Lock()
	state, exists := c.hashers[rel.Key()]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: checksum of '%s' before initialize", data.ErrIllegalState, rel)
	}
	if rel.Value.HasOffset() && rel.Value.Offset() != state.next {
		c.mu.Unlock()
		return fmt.Errorf("%w: checksum of '%s' expected offset %d, got %d", data.ErrInvalid, rel, state.next, rel.Value.Offset())
	}
	state.hasher.Write(rel.Value.Bytes())
	state.next += int64(rel.Value.Len())
	c.mu.Unlock()

	return c.Passthrough.Drain(rel)
}

func (c *Checksum) Finalize(rel feather.Relative[feather.Resource]) (*promise.Promise[struct{}], error) {
	c.mu.Lock()
	if state, exists := c.hashers[rel.Key()]; exists {
		c.sums[rel.Key()] = state.hasher.Sum(nil)
		delete(c.hashers, rel.Key())
	}
	c.mu.Unlock()

	return c.Passthrough.Finalize(rel)
}

// Sum returns the digest of a finalized sub-resource.
func (c *Checksum) Sum(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum, exists := c.sums[key]
	return sum, exists
}

// Sums returns the hex digests of every finalized sub-resource.
func (c *Checksum) Sums() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	sums := make(map[string]string, len(c.sums))
	for key, sum := range c.sums {
		sums[key] = hex.EncodeToString(sum)
	}
	return sums
}
