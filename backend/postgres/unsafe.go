package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwantia/feather/data"
)

// This file contains internal "unsafe" methods that perform operations without acquiring locks.
// These methods MUST only be called when the caller already holds the appropriate lock.

// openedUnsafe fails until Open created the pool.
// MUST be called while holding at least a read lock.
func (pb *PostgresBackend) openedUnsafe() error {
	if pb.pool == nil {
		return data.ErrClosed
	}
	return nil
}

// createObjectUnsafe inserts a new object record.
// MUST be called while holding a write lock.
func (pb *PostgresBackend) createObjectUnsafe(ctx context.Context, stat *data.FileStat) error {
	id := uuid.Must(uuid.NewV7()).String()

	_, err := pb.pool.Exec(ctx, `
		INSERT INTO feather_objects (id, key, mode, size, modify_time, create_time, content_type, etag, link_target)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, stat.Key, int64(stat.Mode), stat.Size,
		stat.ModifyTime.UnixNano(), stat.CreateTime.UnixNano(),
		string(stat.ContentType), stat.ETag, stat.LinkTarget)
	if err != nil {
		return fmt.Errorf("failed to insert object: %w", err)
	}

	// Update B-tree
	pb.keys.Set(stat.Key, id)
	return nil
}

// readObjectUnsafe reads an object record without acquiring locks.
// MUST be called while holding at least a read lock.
func (pb *PostgresBackend) readObjectUnsafe(ctx context.Context, key string) (*data.FileStat, error) {
	// The root is implicit and always a directory
	if key == "" {
		return &data.FileStat{Mode: data.DefaultDirMode, ContentType: data.ContentTypeDirectory}, nil
	}

	// Check B-tree first
	id, exists := pb.keys.Get(key)
	if !exists {
		return nil, data.ErrNotExist
	}

	var stat data.FileStat
	var mode, modifyTime, createTime int64
	var contentType, etag, linkTarget *string

	err := pb.pool.QueryRow(ctx, `
		SELECT key, mode, size, modify_time, create_time, content_type, etag, link_target
		FROM feather_objects WHERE id = $1
	`, id).Scan(&stat.Key, &mode, &stat.Size, &modifyTime, &createTime, &contentType, &etag, &linkTarget)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query object: %w", err)
	}

	stat.Mode = data.FileMode(mode)
	stat.ModifyTime = time.Unix(0, modifyTime)
	stat.CreateTime = time.Unix(0, createTime)
	if contentType != nil {
		stat.ContentType = data.ContentType(*contentType)
	}
	if etag != nil {
		stat.ETag = *etag
	}
	if linkTarget != nil {
		stat.LinkTarget = *linkTarget
	}

	return &stat, nil
}

// idUnsafe returns the record id of key.
// MUST be called while holding at least a read lock.
func (pb *PostgresBackend) idUnsafe(key string) string {
	id, _ := pb.keys.Get(key)
	return id
}

// descendantsUnsafe returns every key below dir, deepest first.
// MUST be called while holding at least a read lock.
func (pb *PostgresBackend) descendantsUnsafe(dir string) []string {
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	pb.keys.Ascend(prefix, func(key, _ string) bool {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return false
		}
		keys = append(keys, key)
		return true
	})

	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// deleteObjectUnsafe removes the record; its content follows by cascade.
// MUST be called while holding a write lock.
func (pb *PostgresBackend) deleteObjectUnsafe(ctx context.Context, key string) error {
	id, exists := pb.keys.Get(key)
	if !exists {
		return data.ErrNotExist
	}

	if _, err := pb.pool.Exec(ctx, "DELETE FROM feather_objects WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	pb.keys.Delete(key)
	return nil
}
