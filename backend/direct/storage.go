package direct

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"time"

	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

func (db *DirectBackend) CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if key == "" {
		return nil, data.ErrExist
	}
	fullPath := db.resolvePath(key)

	if _, err := os.Lstat(fullPath); err == nil {
		return nil, data.ErrExist
	}

	if parentKey := backend.ParentKey(key); parentKey != "" {
		info, err := os.Stat(db.resolvePath(parentKey))
		if err != nil {
			return nil, mapError(err)
		}
		if !info.IsDir() {
			return nil, data.ErrNotDirectory
		}
	}

	now := time.Now()
	stat := &data.FileStat{
		Key:  key,
		Mode: mode,

		CreateTime: now,
		ModifyTime: now,
	}

	if mode.IsDir() {
		stat.ContentType = data.ContentTypeDirectory
		return stat, mapError(os.Mkdir(fullPath, os.FileMode(mode.Perm()|0700)))
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, os.FileMode(mode.Perm()|0600))
	if err != nil {
		return nil, mapError(err)
	}

	stat.ContentType = data.GetMIMEType(path.Base(key))
	return stat, file.Close()
}

func (db *DirectBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	file, err := os.Open(db.resolvePath(key))
	if err != nil {
		return 0, mapError(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, mapError(err)
	}
	if info.IsDir() {
		return 0, data.ErrIsDirectory
	}

	n, err := file.ReadAt(buf, offset)
	if errors.Is(err, io.EOF) && n > 0 {
		return n, nil
	}
	return n, err
}

func (db *DirectBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Open file for writing (O_RDWR to support both read and write)
	file, err := os.OpenFile(db.resolvePath(key), os.O_RDWR, 0644)
	if err != nil {
		return 0, mapError(err)
	}
	defer file.Close()

	return file.WriteAt(buf, offset)
}

func (db *DirectBackend) DeleteObject(ctx context.Context, key string, force bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	fullPath := db.resolvePath(key)

	info, err := os.Lstat(fullPath)
	if err != nil {
		return mapError(err)
	}

	if info.IsDir() {
		if key == "" {
			return data.ErrPermission
		}
		if force {
			return os.RemoveAll(fullPath)
		}

		entries, err := os.ReadDir(fullPath)
		if err != nil {
			return mapError(err)
		}
		if len(entries) > 0 {
			return data.ErrDirectoryNotEmpty
		}
	}

	return mapError(os.Remove(fullPath))
}

func (db *DirectBackend) ListObjects(ctx context.Context, key string) ([]*data.FileStat, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	fullPath := db.resolvePath(key)

	info, err := os.Lstat(fullPath)
	if err != nil {
		return nil, mapError(err)
	}

	if !info.IsDir() {
		return []*data.FileStat{
			db.toFileStat(key, info),
		}, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, mapError(err)
	}

	stats := make([]*data.FileStat, 0, len(entries))
	for _, entry := range entries {
		childInfo, err := entry.Info()
		if err != nil {
			continue
		}

		stats = append(stats, db.toFileStat(backend.ChildKey(key, entry.Name()), childInfo))
	}

	return stats, nil
}

func (db *DirectBackend) HeadObject(ctx context.Context, key string) (*data.FileStat, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	info, err := os.Lstat(db.resolvePath(key))
	if err != nil {
		return nil, mapError(err)
	}

	return db.toFileStat(key, info), nil
}

func (db *DirectBackend) TruncateObject(ctx context.Context, key string, size int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return mapError(os.Truncate(db.resolvePath(key), size))
}
