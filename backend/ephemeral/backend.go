package ephemeral

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
	"github.com/tidwall/btree"
)

// MaxObjectSize is the largest object an ephemeral backend accepts.
const MaxObjectSize = 256 << 20

// EphemeralBackend keeps every object in memory. Its contents are lost once
// it is closed.
type EphemeralBackend struct {
	mu sync.RWMutex
	id string

	keys    *btree.Map[string, string]
	objects map[string]*data.FileStat
	datas   map[string][]byte
}

func NewEphemeralBackend() *EphemeralBackend {
	return &EphemeralBackend{
		id:      uuid.Must(uuid.NewV7()).String(),
		keys:    btree.NewMap[string, string](0),
		objects: make(map[string]*data.FileStat),
		datas:   make(map[string][]byte),
	}
}

// Returns the identifier name defined for this backend
func (*EphemeralBackend) Name() string {
	return "ephemeral"
}

// Address is unique per instance, so two ephemeral backends are never
// equivalent.
func (eb *EphemeralBackend) Address() string {
	return "ephemeral:" + eb.id
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (eb *EphemeralBackend) Open(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (eb *EphemeralBackend) Close(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.keys.Clear()
	clear(eb.objects)
	clear(eb.datas)

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (eb *EphemeralBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityRandomRead,
			backend.CapabilityRandomWrite,
		},
		MaxObjectSize: MaxObjectSize,
	}
}
