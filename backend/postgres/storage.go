package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

func (pb *PostgresBackend) CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := pb.openedUnsafe(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.ErrExist
	}
	// Check if path exists in B-tree
	if _, exists := pb.keys.Get(key); exists {
		return nil, data.ErrExist
	}

	// Verify parent directory exists
	if parentKey := backend.ParentKey(key); parentKey != "" {
		parent, err := pb.readObjectUnsafe(ctx, parentKey)
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

	return stat, pb.createObjectUnsafe(ctx, stat)
}

func (pb *PostgresBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if err := pb.openedUnsafe(); err != nil {
		return 0, err
	}
	stat, err := pb.readObjectUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}

	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	if offset >= stat.Size {
		return 0, io.EOF
	}

	// substring on bytea is 1-based
	toRead := min(int64(len(buf)), stat.Size-offset)
	var content []byte
	err = pb.pool.QueryRow(ctx,
		"SELECT substring(content FROM $1 FOR $2) FROM feather_data WHERE id = $3",
		offset+1, toRead, pb.idUnsafe(key)).Scan(&content)

	if errors.Is(err, pgx.ErrNoRows) {
		// No data stored yet (empty file)
		return 0, io.EOF
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query data: %w", err)
	}

	return copy(buf, content), nil
}

func (pb *PostgresBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := pb.openedUnsafe(); err != nil {
		return 0, err
	}
	stat, err := pb.readObjectUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}

	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	id := pb.idUnsafe(key)
	writeEnd := offset + int64(len(buf))

	// Start transaction
	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Get existing content or create new
	var content []byte
	err = tx.QueryRow(ctx, "SELECT content FROM feather_data WHERE id = $1", id).Scan(&content)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to query existing data: %w", err)
	}

	// Expand buffer if needed
	newSize := max(writeEnd, stat.Size)
	if int64(len(content)) < newSize {
		newBuffer := make([]byte, newSize)
		copy(newBuffer, content)
		content = newBuffer
	}

	copy(content[offset:], buf)

	if _, err := tx.Exec(ctx, `
		INSERT INTO feather_data (id, content, size) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size
	`, id, content, newSize); err != nil {
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE feather_objects SET size = $1, modify_time = $2 WHERE id = $3",
		newSize, time.Now().UnixNano(), id); err != nil {
		return 0, fmt.Errorf("failed to update object: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(buf), nil
}

func (pb *PostgresBackend) DeleteObject(ctx context.Context, key string, force bool) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := pb.openedUnsafe(); err != nil {
		return err
	}
	stat, err := pb.readObjectUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if !stat.Mode.IsDir() {
		return pb.deleteObjectUnsafe(ctx, key)
	}

	children := pb.descendantsUnsafe(key)
	if len(children) > 0 && !force {
		return data.ErrDirectoryNotEmpty
	}

	errs := data.Errors{}
	for _, child := range children {
		errs.Add(pb.deleteObjectUnsafe(ctx, child))
	}
	if key != "" {
		errs.Add(pb.deleteObjectUnsafe(ctx, key))
	}
	return errs.Errors()
}

func (pb *PostgresBackend) ListObjects(ctx context.Context, key string) ([]*data.FileStat, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if err := pb.openedUnsafe(); err != nil {
		return nil, err
	}
	stat, err := pb.readObjectUnsafe(ctx, key)
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
	pb.keys.Ascend(prefix, func(childKey, _ string) bool {
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
		child, err := pb.readObjectUnsafe(ctx, childKey)
		if err != nil {
			return nil, err
		}
		result = append(result, child)
	}

	return result, nil
}

func (pb *PostgresBackend) HeadObject(ctx context.Context, key string) (*data.FileStat, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if err := pb.openedUnsafe(); err != nil {
		return nil, err
	}
	return pb.readObjectUnsafe(ctx, key)
}

func (pb *PostgresBackend) TruncateObject(ctx context.Context, key string, size int64) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := pb.openedUnsafe(); err != nil {
		return err
	}
	stat, err := pb.readObjectUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if stat.Mode.IsDir() {
		return data.ErrIsDirectory
	}

	if size == stat.Size {
		return nil // No changes needed
	}

	id := pb.idUnsafe(key)
	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var content []byte
	err = tx.QueryRow(ctx, "SELECT content FROM feather_data WHERE id = $1", id).Scan(&content)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to query existing data: %w", err)
	}

	resized := make([]byte, size)
	copy(resized, content)

	if _, err := tx.Exec(ctx, `
		INSERT INTO feather_data (id, content, size) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size
	`, id, resized, size); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE feather_objects SET size = $1, modify_time = $2 WHERE id = $3",
		size, time.Now().UnixNano(), id); err != nil {
		return fmt.Errorf("failed to update object: %w", err)
	}

	return tx.Commit(ctx)
}
