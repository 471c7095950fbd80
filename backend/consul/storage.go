package consul

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

// CreateObject creates a new object (file or directory)
func (cb *ConsulBackend) CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if key == "" {
		return nil, data.ErrExist
	}

	// Check if object already exists
	if _, err := cb.headUnsafe(ctx, key); err == nil {
		return nil, data.ErrExist
	} else if !errors.Is(err, data.ErrNotExist) {
		return nil, err
	}

	// Verify parent directory exists (except for root)
	if parentKey := backend.ParentKey(key); parentKey != "" {
		parent, err := cb.headUnsafe(ctx, parentKey)
		if err != nil {
			return nil, err
		}
		if !parent.Mode.IsDir() {
			return nil, data.ErrNotDirectory
		}
	}

	pair := &api.KVPair{
		Key:   cb.buildKey(key),
		Flags: uint64(mode),
		Value: []byte{}, // Empty file
	}
	if mode.IsDir() {
		pair.Key = cb.folderKey(key)
	}

	if _, err := cb.kv.Put(pair, writeOptions(ctx)); err != nil {
		return nil, err
	}

	now := time.Now()
	return &data.FileStat{
		Key:        key,
		Mode:       mode,
		Size:       0,
		CreateTime: now,
		ModifyTime: now,
	}, nil
}

// ReadObject reads data from an object at a given offset
func (cb *ConsulBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	pair, err := cb.fileUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}

	size := int64(len(pair.Value))
	if offset >= size {
		return 0, io.EOF
	}

	// Calculate how many bytes we can actually read
	toRead := min(int64(len(buf)), size-offset)
	return copy(buf, pair.Value[offset:offset+toRead]), nil
}

// WriteObject writes data to an object at a given offset
func (cb *ConsulBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	pair, err := cb.fileUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}

	writeEnd := offset + int64(len(buf))

	// Check size constraint from capabilities
	capabilities := cb.GetCapabilities()
	if capabilities.MaxObjectSize > 0 && writeEnd > capabilities.MaxObjectSize {
		return 0, data.ErrTooLarge
	}

	// Expand buffer if needed
	buffer := pair.Value
	if writeEnd > int64(len(buffer)) {
		newBuffer := make([]byte, writeEnd)
		copy(newBuffer, buffer)
		buffer = newBuffer
	}

	copy(buffer[offset:], buf)

	// Store back to Consul
	pair.Value = buffer
	if _, err := cb.kv.Put(pair, writeOptions(ctx)); err != nil {
		return 0, err
	}

	return len(buf), nil
}

// DeleteObject deletes an object (file or directory)
func (cb *ConsulBackend) DeleteObject(ctx context.Context, key string, force bool) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stat, err := cb.headUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if !stat.Mode.IsDir() {
		_, err := cb.kv.Delete(cb.buildKey(key), writeOptions(ctx))
		return err
	}

	folder := cb.folderKey(key)
	keys, _, err := cb.kv.Keys(folder, "", queryOptions(ctx))
	if err != nil {
		return err
	}

	children := 0
	for _, k := range keys {
		if k != folder {
			children++
		}
	}
	if children > 0 && !force {
		return data.ErrDirectoryNotEmpty
	}
	if key == "" {
		return data.ErrPermission
	}

	// Delete the folder key and every child recursively
	_, err = cb.kv.DeleteTree(folder, writeOptions(ctx))
	return err
}

// ListObjects lists all objects under a given key (directory)
func (cb *ConsulBackend) ListObjects(ctx context.Context, key string) ([]*data.FileStat, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	stat, err := cb.headUnsafe(ctx, key)
	if err != nil {
		return nil, err
	}
	if !stat.Mode.IsDir() {
		return []*data.FileStat{stat}, nil
	}

	// Get direct children only (separator "/" tells Consul to only return one level)
	folder := cb.folderKey(key)
	consulKeys, _, err := cb.kv.Keys(folder, "/", queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	result := make([]*data.FileStat, 0, len(consulKeys))
	for _, consulKey := range consulKeys {
		if consulKey == folder {
			continue
		}

		childKey := cb.objectKey(consulKey)
		if strings.HasSuffix(consulKey, "/") {
			child, err := cb.headUnsafe(ctx, childKey)
			if err != nil {
				continue
			}
			result = append(result, child)
			continue
		}

		pair, _, err := cb.kv.Get(consulKey, queryOptions(ctx))
		if err != nil {
			return nil, err
		}
		if pair != nil {
			result = append(result, fileStat(childKey, pair))
		}
	}

	return result, nil
}

// HeadObject returns the stat of a single object
func (cb *ConsulBackend) HeadObject(ctx context.Context, key string) (*data.FileStat, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return cb.headUnsafe(ctx, key)
}

// TruncateObject resizes a file
func (cb *ConsulBackend) TruncateObject(ctx context.Context, key string, size int64) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	pair, err := cb.fileUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if capabilities := cb.GetCapabilities(); capabilities.MaxObjectSize > 0 && size > capabilities.MaxObjectSize {
		return data.ErrTooLarge
	}

	resized := make([]byte, size)
	copy(resized, pair.Value)
	pair.Value = resized

	_, err = cb.kv.Put(pair, writeOptions(ctx))
	return err
}

// headUnsafe resolves key to a file, a folder key or a plain prefix.
// MUST be called while holding at least a read lock.
func (cb *ConsulBackend) headUnsafe(ctx context.Context, key string) (*data.FileStat, error) {
	if key == "" {
		return &data.FileStat{Mode: data.DefaultDirMode, ContentType: data.ContentTypeDirectory}, nil
	}

	pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
	if err != nil {
		return nil, err
	}
	if pair != nil {
		return fileStat(key, pair), nil
	}

	folder := cb.folderKey(key)
	keys, _, err := cb.kv.Keys(folder, "/", queryOptions(ctx))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, data.ErrNotExist
	}

	mode := data.DefaultDirMode
	if pair, _, err := cb.kv.Get(folder, queryOptions(ctx)); err == nil && pair != nil && pair.Flags != 0 {
		mode = data.FileMode(pair.Flags) | data.ModeDir
	}

	return &data.FileStat{
		Key:         key,
		Mode:        mode,
		ContentType: data.ContentTypeDirectory,
	}, nil
}

// fileUnsafe returns the pair of a file and rejects directories.
// MUST be called while holding at least a read lock.
func (cb *ConsulBackend) fileUnsafe(ctx context.Context, key string) (*api.KVPair, error) {
	if key != "" {
		pair, _, err := cb.kv.Get(cb.buildKey(key), queryOptions(ctx))
		if err != nil {
			return nil, err
		}
		if pair != nil {
			return pair, nil
		}
	}

	if _, err := cb.headUnsafe(ctx, key); err != nil {
		return nil, err
	}
	return nil, data.ErrIsDirectory
}

func fileStat(key string, pair *api.KVPair) *data.FileStat {
	mode := data.FileMode(pair.Flags)
	if mode == 0 {
		mode = data.DefaultFileMode
	}

	return &data.FileStat{
		Key:         key,
		Mode:        mode,
		Size:        int64(len(pair.Value)),
		ContentType: data.GetMIMEType(key),
	}
}

func queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
