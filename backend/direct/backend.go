package direct

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

// DirectBackend stores objects as files below a directory of the local
// filesystem. Symbolic links are reported, never followed.
type DirectBackend struct {
	mu   sync.RWMutex
	path string
}

func NewDirectBackend(path string) (*DirectBackend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrMalformedAddress, err)
	}

	return &DirectBackend{
		path: filepath.Clean(abs),
	}, nil
}

// Returns the identifier name defined for this backend
func (*DirectBackend) Name() string {
	return "direct"
}

func (db *DirectBackend) Address() string {
	return "direct://" + filepath.ToSlash(db.path)
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (db *DirectBackend) Open(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Verify the root directory exists
	info, err := os.Stat(db.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return data.ErrPermission
		}

		return fmt.Errorf("%w: %v", data.ErrOpenFailed, err)
	}

	// Ensure the root is a directory
	if !info.IsDir() {
		return data.ErrNotDirectory
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (db *DirectBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (db *DirectBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityRandomRead,
			backend.CapabilityRandomWrite,
			backend.CapabilitySymlink,
		},
		// Limits vary by OS/filesystem, but we set a practical limit of 10GB.
		MaxObjectSize: 10737418240, // 10 GB
	}
}

// resolvePath joins the backend path with the key. Keys can never escape
// the backend root.
func (db *DirectBackend) resolvePath(key string) string {
	return filepath.Join(db.path, filepath.FromSlash(filepath.Clean("/"+key)))
}

// toFileStat converts os.FileInfo to a FileStat.
func (db *DirectBackend) toFileStat(key string, fileInfo os.FileInfo) *data.FileStat {
	stat := &data.FileStat{
		Key:  key,
		Size: fileInfo.Size(),
		Mode: data.FromFileMode(fileInfo.Mode()),

		ModifyTime:  fileInfo.ModTime(),
		ContentType: data.GetMIMEType(fileInfo.Name()),
	}

	switch {
	case fileInfo.IsDir():
		stat.Size = 0
		stat.ContentType = data.ContentTypeDirectory
	case fileInfo.Mode()&fs.ModeSymlink != 0:
		if target, err := os.Readlink(db.resolvePath(key)); err == nil {
			stat.LinkTarget = target
		}
	}

	return stat
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return data.ErrNotExist
	case errors.Is(err, fs.ErrExist):
		return data.ErrExist
	case errors.Is(err, fs.ErrPermission):
		return data.ErrPermission
	}
	return err
}
