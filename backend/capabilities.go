package backend

// BackendCapability represents a capability that a backend can provide

import "slices"

type BackendCapability string

const (
	// Core capabilities by backend
	CapabilityObjectStorage BackendCapability = "object_storage"

	// Extension capabilities per 'object-storage' backend
	CapabilityRandomWrite BackendCapability = "random_write"
	CapabilityRandomRead  BackendCapability = "random_read"
	CapabilitySymlink     BackendCapability = "symlink"
	CapabilityStreaming   BackendCapability = "streaming"
	CapabilityMultipart   BackendCapability = "multipart"
	CapabilityVersioning  BackendCapability = "versioning"
)

func GetAllCapabilities() *BackendCapabilities {
	return &BackendCapabilities{
		Capabilities: []BackendCapability{
			CapabilityObjectStorage,
			CapabilityRandomWrite,
			CapabilityRandomRead,
			CapabilitySymlink,
			CapabilityStreaming,
			CapabilityMultipart,
			CapabilityVersioning,
		},
	}
}

// BackendCapabilities describes what a backend supports
type BackendCapabilities struct {
	Capabilities  []BackendCapability `json:"capabilities"`
	MinObjectSize int64               `json:"min_object_size"`
	MaxObjectSize int64               `json:"max_object_size"`
}

// Contains checks if a capability is supported
func (vbc *BackendCapabilities) Contains(cap BackendCapability) bool {
	return slices.Contains(vbc.Capabilities, cap)
}
