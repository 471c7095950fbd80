package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

func (sb *SQLiteBackend) CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if key == "" {
		return nil, data.ErrExist
	}
	// Check if path exists in B-tree
	if _, exists := sb.keys.Get(key); exists {
		return nil, data.ErrExist
	}

	// Verify parent directory exists
	if parentKey := backend.ParentKey(key); parentKey != "" {
		parent, err := sb.readObjectUnsafe(ctx, parentKey)
		if err != nil {
			return nil, data.ErrNotExist
		}

		if !parent.Mode.IsDir() {
			return nil, data.ErrNotDirectory
		}
	}

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

	return stat, sb.createObjectUnsafe(ctx, stat)
}

func (sb *SQLiteBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	stat, err := sb.readObjectUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}

	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	if offset >= stat.Size {
		return 0, io.EOF
	}

	// SQLite substr is 1-based
	toRead := min(int64(len(buf)), stat.Size-offset)
	var content []byte
	err = sb.db.QueryRowContext(ctx,
		"SELECT substr(content, ?, ?) FROM feather_data WHERE id = ?",
		offset+1, toRead, sb.idUnsafe(key)).Scan(&content)

	if errors.Is(err, sql.ErrNoRows) {
		// No data stored yet (empty file)
		return 0, io.EOF
	}
	if err != nil {
		return 0, err
	}

	return copy(buf, content), nil
}

func (sb *SQLiteBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	stat, err := sb.readObjectUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}

	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	id := sb.idUnsafe(key)
	writeEnd := offset + int64(len(buf))

	// Start transaction
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Get existing content or create new
	var content []byte
	err = tx.QueryRowContext(ctx, "SELECT content FROM feather_data WHERE id = ?", id).Scan(&content)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	missing := errors.Is(err, sql.ErrNoRows)

	// Expand buffer if needed
	newSize := max(writeEnd, stat.Size)
	if int64(len(content)) < newSize {
		newBuffer := make([]byte, newSize)
		copy(newBuffer, content)
		content = newBuffer
	}

	copy(content[offset:], buf)

	if missing {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO feather_data (id, content, size) VALUES (?, ?, ?)",
			id, content, newSize)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE feather_data SET content = ?, size = ? WHERE id = ?",
			content, newSize, id)
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE feather_objects SET size = ?, modify_time = ? WHERE id = ?",
		newSize, time.Now().UnixNano(), id); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(buf), nil
}

func (sb *SQLiteBackend) DeleteObject(ctx context.Context, key string, force bool) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	stat, err := sb.readObjectUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if !stat.Mode.IsDir() {
		return sb.deleteObjectUnsafe(ctx, key)
	}

	children := sb.descendantsUnsafe(key)
	if len(children) > 0 && !force {
		return data.ErrDirectoryNotEmpty
	}

	errs := data.Errors{}
	for _, child := range children {
		errs.Add(sb.deleteObjectUnsafe(ctx, child))
	}
	if key != "" {
		errs.Add(sb.deleteObjectUnsafe(ctx, key))
	}
	return errs.Errors()
}

func (sb *SQLiteBackend) ListObjects(ctx context.Context, key string) ([]*data.FileStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	stat, err := sb.readObjectUnsafe(ctx, key)
	if err != nil {
		return nil, err
	}

	// For files, return single entry
	if !stat.Mode.IsDir() {
		return []*data.FileStat{stat}, nil
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	var childKeys []string
	sb.keys.Ascend(prefix, func(childKey, _ string) bool {
		if len(childKey) < len(prefix) || childKey[:len(prefix)] != prefix {
			return false
		}
		if backend.IsDirectChild(key, childKey) {
			childKeys = append(childKeys, childKey)
		}
		return true
	})

	result := make([]*data.FileStat, 0, len(childKeys))
	for _, childKey := range childKeys {
		child, err := sb.readObjectUnsafe(ctx, childKey)
		if err != nil {
			return nil, err
		}
		result = append(result, child)
	}

	return result, nil
}

func (sb *SQLiteBackend) HeadObject(ctx context.Context, key string) (*data.FileStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.readObjectUnsafe(ctx, key)
}

func (sb *SQLiteBackend) TruncateObject(ctx context.Context, key string, size int64) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	stat, err := sb.readObjectUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if stat.Mode.IsDir() {
		return data.ErrIsDirectory
	}

	if size == stat.Size {
		return nil // No changes needed
	}

	id := sb.idUnsafe(key)
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var content []byte
	err = tx.QueryRowContext(ctx, "SELECT content FROM feather_data WHERE id = ?", id).Scan(&content)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	resized := make([]byte, size)
	copy(resized, content)

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO feather_data (id, content, size) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET content = excluded.content, size = excluded.size",
		id, resized, size); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE feather_objects SET size = ?, modify_time = ? WHERE id = ?",
		size, time.Now().UnixNano(), id); err != nil {
		return err
	}

	return tx.Commit()
}
