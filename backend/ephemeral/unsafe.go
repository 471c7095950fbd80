package ephemeral

import (
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/feather/data"
)

// This file contains internal "unsafe" methods that perform operations without acquiring locks.
// These methods MUST only be called when the caller already holds the appropriate lock.

var root = &data.FileStat{
	Key:  "",
	Mode: data.DefaultDirMode,
}

// createObjectUnsafe stores a new object record.
// MUST be called while holding a write lock.
func (eb *EphemeralBackend) createObjectUnsafe(key string, mode data.FileMode) *data.FileStat {
	now := time.Now()
	stat := &data.FileStat{
		Key:         key,
		Mode:        mode,
		ModifyTime:  now,
		CreateTime:  now,
		ContentType: data.GetMIMEType(key),
	}
	if mode.IsDir() {
		stat.ContentType = data.ContentTypeDirectory
	}

	id := uuid.Must(uuid.NewV7()).String()
	eb.keys.Set(key, id)
	eb.objects[id] = stat
	return clone(stat)
}

// readObjectUnsafe reads the object record without copying it.
// MUST be called while holding at least a read lock.
func (eb *EphemeralBackend) readObjectUnsafe(key string) (*data.FileStat, error) {
	// The root is implicit and always a directory
	if key == "" {
		return root, nil
	}

	id, exists := eb.keys.Get(key)
	if !exists {
		return nil, data.ErrNotExist
	}

	stat, exists := eb.objects[id]
	if !exists {
		return nil, data.ErrNotExist
	}

	return stat, nil
}

// idUnsafe returns the internal identifier of key.
// MUST be called while holding at least a read lock.
func (eb *EphemeralBackend) idUnsafe(key string) string {
	id, _ := eb.keys.Get(key)
	return id
}

// touchUnsafe updates the modification time of stat.
// MUST be called while holding a write lock.
func (eb *EphemeralBackend) touchUnsafe(stat *data.FileStat) {
	stat.ModifyTime = time.Now()
}

// descendantsUnsafe returns every key below dir, deepest first.
// MUST be called while holding at least a read lock.
func (eb *EphemeralBackend) descendantsUnsafe(dir string) []string {
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	eb.keys.Ascend(prefix, func(key, _ string) bool {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return false
		}
		keys = append(keys, key)
		return true
	})

	// Reverse so children are removed before their parents
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// deleteObjectUnsafe removes the object and its data.
// MUST be called while holding a write lock.
func (eb *EphemeralBackend) deleteObjectUnsafe(key string) {
	id, exists := eb.keys.Delete(key)
	if !exists {
		return
	}

	delete(eb.objects, id)
	delete(eb.datas, id)
}
