package consul

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

// ConsulBackend provides a simple object storage backend using HashiCorp Consul KV store.
//
// Architecture:
// - Files are stored directly in Consul KV with their key as the path
// - Directories are stored as folder keys ending in "/" with an empty value
// - Prefixes without a folder key count as directories as well
// - The file mode is kept in the flags of each KV pair
//
// Limitations:
// - Consul KV has a 512KB limit per value
// - Best suited for configuration files, small assets, and metadata storage
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Scheme used to reach the Consul server (default: "http")
	Scheme string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Prefix for all keys in Consul KV (default: "/")
	Prefix string
}

// NewConsulBackend creates a new Consul-backed object storage backend
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	if config.Prefix == "" {
		config.Prefix = "/"
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Scheme != "" {
		clientConfig.Scheme = config.Scheme
	}
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrMalformedAddress, err)
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

func (cb *ConsulBackend) Address() string {
	address := "consul://" + cb.config.Address + "/" + strings.Trim(cb.config.Prefix, "/")
	if cb.config.Datacenter != "" {
		address += "?dc=" + cb.config.Datacenter
	}
	return address
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// The client is stateless, so only verify the agent is reachable
	if _, err := cb.client.Status().Leader(); err != nil {
		return fmt.Errorf("%w: %v", data.ErrOpenFailed, err)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityRandomRead,
		},
		// Consul KV has a default limit of 512KB per value
		// We set it slightly lower to account for metadata overhead
		MaxObjectSize: 500 * 1024, // 500 KB
	}
}

// buildKey constructs the full Consul KV key from the object key
func (cb *ConsulBackend) buildKey(key string) string {
	key = strings.TrimPrefix(key, "/")

	// Handle "/" prefix specially - it means no prefix, just use the key
	prefix := strings.Trim(cb.config.Prefix, "/")
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "/" + key
}

// folderKey returns the Consul key marking key as a directory. The root
// folder of an unprefixed backend is the empty prefix.
func (cb *ConsulBackend) folderKey(key string) string {
	consulKey := cb.buildKey(key)
	if consulKey == "" {
		return ""
	}
	return consulKey + "/"
}

// objectKey strips the configured prefix from a Consul key
func (cb *ConsulBackend) objectKey(consulKey string) string {
	consulKey = strings.TrimSuffix(consulKey, "/")
	prefix := strings.Trim(cb.config.Prefix, "/")
	if prefix == "" {
		return consulKey
	}
	return strings.TrimPrefix(strings.TrimPrefix(consulKey, prefix), "/")
}
