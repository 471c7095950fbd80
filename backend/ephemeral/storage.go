package ephemeral

import (
	"context"
	"io"

	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

func (eb *EphemeralBackend) CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if key == "" {
		return nil, data.ErrExist
	}
	// Check if path exists in B-tree
	if _, exists := eb.keys.Get(key); exists {
		return nil, data.ErrExist
	}

	// Verify parent directory exists
	if parentKey := backend.ParentKey(key); parentKey != "" {
		parent, err := eb.readObjectUnsafe(parentKey)
		if err != nil {
			return nil, data.ErrNotExist
		}

		if !parent.Mode.IsDir() {
			return nil, data.ErrNotDirectory
		}
	}

	stat := eb.createObjectUnsafe(key, mode)
	return stat, nil
}

func (eb *EphemeralBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	stat, err := eb.readObjectUnsafe(key)
	if err != nil {
		return 0, err
	}

	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	if offset >= stat.Size {
		return 0, io.EOF
	}

	buffer, exists := eb.datas[eb.idUnsafe(key)]
	if !exists {
		return 0, io.EOF
	}

	// Calculate how many bytes we can actually read
	available := stat.Size - offset
	toRead := min(int64(len(buf)), available)
	return copy(buf, buffer[offset:offset+toRead]), nil
}

func (eb *EphemeralBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	stat, err := eb.readObjectUnsafe(key)
	if err != nil {
		return 0, err
	}

	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	writeEnd := offset + int64(len(buf))
	if writeEnd > MaxObjectSize {
		return 0, data.ErrTooLarge
	}

	id := eb.idUnsafe(key)
	buffer := eb.datas[id]

	// Expand buffer if needed
	if newSize := max(writeEnd, stat.Size); int64(len(buffer)) < newSize {
		newBuffer := make([]byte, newSize)
		copy(newBuffer, buffer)
		buffer = newBuffer
	}

	copy(buffer[offset:], buf)
	eb.datas[id] = buffer

	if writeEnd > stat.Size {
		stat.Size = writeEnd
	}
	eb.touchUnsafe(stat)

	return len(buf), nil
}

func (eb *EphemeralBackend) DeleteObject(ctx context.Context, key string, force bool) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	stat, err := eb.readObjectUnsafe(key)
	if err != nil {
		return err
	}

	if !stat.Mode.IsDir() {
		eb.deleteObjectUnsafe(key)
		return nil
	}

	children := eb.descendantsUnsafe(key)
	if len(children) > 0 && !force {
		return data.ErrDirectoryNotEmpty
	}

	for _, child := range children {
		eb.deleteObjectUnsafe(child)
	}
	if key != "" {
		eb.deleteObjectUnsafe(key)
	}
	return nil
}

func (eb *EphemeralBackend) ListObjects(ctx context.Context, key string) ([]*data.FileStat, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	stat, err := eb.readObjectUnsafe(key)
	if err != nil {
		return nil, err
	}

	// For files, return single entry
	if !stat.Mode.IsDir() {
		return []*data.FileStat{clone(stat)}, nil
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	result := make([]*data.FileStat, 0)
	// Keys are ordered, so the scan can start at the prefix and stop at the
	// first key outside of it.
	eb.keys.Ascend(prefix, func(childKey, id string) bool {
		if len(childKey) < len(prefix) || childKey[:len(prefix)] != prefix {
			return false
		}
		if backend.IsDirectChild(key, childKey) {
			result = append(result, clone(eb.objects[id]))
		}
		return true
	})

	return result, nil
}

func (eb *EphemeralBackend) HeadObject(ctx context.Context, key string) (*data.FileStat, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	stat, err := eb.readObjectUnsafe(key)
	if err != nil {
		return nil, err
	}

	return clone(stat), nil
}

func (eb *EphemeralBackend) TruncateObject(ctx context.Context, key string, size int64) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	stat, err := eb.readObjectUnsafe(key)
	if err != nil {
		return err
	}

	if stat.Mode.IsDir() {
		return data.ErrIsDirectory
	}

	if size == stat.Size {
		return nil // No changes needed
	}
	if size > MaxObjectSize {
		return data.ErrTooLarge
	}

	id := eb.idUnsafe(key)
	if buffer, exists := eb.datas[id]; exists {
		if size < int64(len(buffer)) {
			// Shrink file
			eb.datas[id] = buffer[:size]
		} else {
			// Expand file with zeros
			newData := make([]byte, size)
			copy(newData, buffer)
			eb.datas[id] = newData
		}
	}

	stat.Size = size
	eb.touchUnsafe(stat)
	return nil
}

func clone(stat *data.FileStat) *data.FileStat {
	c := *stat
	return &c
}
