package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/feather/data"
)

// This file contains internal "unsafe" methods that perform operations without acquiring locks.
// These methods MUST only be called when the caller already holds the appropriate lock.

// createObjectUnsafe inserts a new object record.
// MUST be called while holding a write lock.
func (sb *SQLiteBackend) createObjectUnsafe(ctx context.Context, stat *data.FileStat) error {
	id := uuid.Must(uuid.NewV7()).String()

	_, err := sb.db.ExecContext(ctx, `
		INSERT INTO feather_objects (id, key, mode, size, modify_time, create_time, content_type, etag, link_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, stat.Key, int64(stat.Mode), stat.Size,
		stat.ModifyTime.UnixNano(), stat.CreateTime.UnixNano(),
		nullString(string(stat.ContentType)), nullString(stat.ETag), nullString(stat.LinkTarget))
	if err != nil {
		return err
	}

	// Update B-tree
	sb.keys.Set(stat.Key, id)
	return nil
}

// readObjectUnsafe reads an object record without acquiring locks.
// MUST be called while holding at least a read lock.
func (sb *SQLiteBackend) readObjectUnsafe(ctx context.Context, key string) (*data.FileStat, error) {
	// The root is implicit and always a directory
	if key == "" {
		return &data.FileStat{Mode: data.DefaultDirMode, ContentType: data.ContentTypeDirectory}, nil
	}

	// Check B-tree first
	id, exists := sb.keys.Get(key)
	if !exists {
		return nil, data.ErrNotExist
	}

	var stat data.FileStat
	var mode int64
	var modifyTime, createTime int64
	var contentType, etag, linkTarget sql.NullString

	err := sb.db.QueryRowContext(ctx, `
		SELECT key, mode, size, modify_time, create_time, content_type, etag, link_target
		FROM feather_objects WHERE id = ?
	`, id).Scan(&stat.Key, &mode, &stat.Size, &modifyTime, &createTime, &contentType, &etag, &linkTarget)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	stat.Mode = data.FileMode(mode)
	stat.ModifyTime = time.Unix(0, modifyTime)
	stat.CreateTime = time.Unix(0, createTime)
	stat.ContentType = data.ContentType(contentType.String)
	stat.ETag = etag.String
	stat.LinkTarget = linkTarget.String

	return &stat, nil
}

// idUnsafe returns the record id of key.
// MUST be called while holding at least a read lock.
func (sb *SQLiteBackend) idUnsafe(key string) string {
	id, _ := sb.keys.Get(key)
	return id
}

// descendantsUnsafe returns every key below dir, deepest first.
// MUST be called while holding at least a read lock.
func (sb *SQLiteBackend) descendantsUnsafe(dir string) []string {
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	sb.keys.Ascend(prefix, func(key, _ string) bool {
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

// deleteObjectUnsafe removes the record and its content.
// MUST be called while holding a write lock.
func (sb *SQLiteBackend) deleteObjectUnsafe(ctx context.Context, key string) error {
	id, exists := sb.keys.Get(key)
	if !exists {
		return data.ErrNotExist
	}

	if _, err := sb.db.ExecContext(ctx, "DELETE FROM feather_data WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := sb.db.ExecContext(ctx, "DELETE FROM feather_objects WHERE id = ?", id); err != nil {
		return err
	}

	sb.keys.Delete(key)
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
