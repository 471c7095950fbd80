package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

func (sb *S3Backend) CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if key == "" {
		return nil, data.ErrExist
	}

	// Check if object already exists
	if _, err := sb.headUnsafe(ctx, key); err == nil {
		return nil, data.ErrExist
	} else if !errors.Is(err, data.ErrNotExist) {
		return nil, err
	}

	if parentKey := backend.ParentKey(key); parentKey != "" {
		parent, err := sb.headUnsafe(ctx, parentKey)
		if err != nil {
			return nil, err
		}
		if !parent.Mode.IsDir() {
			return nil, data.ErrNotDirectory
		}
	}

	objectKey, contentType := key, data.GetMIMEType(key)
	// For directories, create a zero-byte object with trailing slash
	if mode.IsDir() {
		objectKey, contentType = key+"/", data.ContentTypeDirectory
	}

	_, err := sb.client.PutObject(ctx, sb.bucketName, objectKey, bytes.NewReader([]byte{}), 0, minio.PutObjectOptions{
		ContentType: string(contentType),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &data.FileStat{
		Key:         key,
		Mode:        mode,
		Size:        0,
		ContentType: contentType,

		CreateTime: now,
		ModifyTime: now,
	}, nil
}

func (sb *S3Backend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	stat, err := sb.headUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}
	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}
	if offset >= stat.Size || len(buf) == 0 {
		return 0, io.EOF
	}

	// Read object with offset
	opts := minio.GetObjectOptions{}
	end := min(offset+int64(len(buf)), stat.Size) - 1
	if err := opts.SetRange(offset, end); err != nil {
		return 0, err
	}

	object, err := sb.client.GetObject(ctx, sb.bucketName, key, opts)
	if err != nil {
		return 0, err
	}
	defer object.Close()

	n, err := io.ReadFull(object, buf[:end-offset+1])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return n, err
	}

	return n, nil
}

func (sb *S3Backend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// S3 doesn't support partial writes - we need to read-modify-write
	stat, err := sb.headUnsafe(ctx, key)
	if err != nil {
		return 0, err
	}
	if stat.Mode.IsDir() {
		return 0, data.ErrIsDirectory
	}

	existing, err := sb.readAllUnsafe(ctx, key, stat.Size)
	if err != nil {
		return 0, err
	}

	// Calculate new size
	newSize := max(offset+int64(len(buf)), int64(len(existing)))
	if newSize > sb.GetCapabilities().MaxObjectSize {
		return 0, data.ErrTooLarge
	}
	newData := make([]byte, newSize)
	copy(newData, existing)
	copy(newData[offset:], buf)

	// Upload the modified object
	_, err = sb.client.PutObject(ctx, sb.bucketName, key, bytes.NewReader(newData), int64(len(newData)), minio.PutObjectOptions{
		ContentType: string(stat.ContentType),
	})
	if err != nil {
		return 0, err
	}

	return len(buf), nil
}

func (sb *S3Backend) DeleteObject(ctx context.Context, key string, force bool) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	stat, err := sb.headUnsafe(ctx, key)
	if err != nil {
		return err
	}

	if !stat.Mode.IsDir() {
		return sb.client.RemoveObject(ctx, sb.bucketName, key, minio.RemoveObjectOptions{})
	}
	if key == "" {
		return data.ErrPermission
	}

	prefix := key + "/"
	var objectsToDelete []string
	// List all objects with this prefix
	for object := range sb.client.ListObjects(ctx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return object.Err
		}
		objectsToDelete = append(objectsToDelete, object.Key)
	}

	children := 0
	for _, objectKey := range objectsToDelete {
		if objectKey != prefix {
			children++
		}
	}
	if children > 0 && !force {
		return data.ErrDirectoryNotEmpty
	}

	errs := data.Errors{}
	for _, objectKey := range objectsToDelete {
		errs.Add(sb.client.RemoveObject(ctx, sb.bucketName, objectKey, minio.RemoveObjectOptions{}))
	}

	return errs.Errors()
}

func (sb *S3Backend) ListObjects(ctx context.Context, key string) ([]*data.FileStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	stat, err := sb.headUnsafe(ctx, key)
	if err != nil {
		return nil, err
	}
	if !stat.Mode.IsDir() {
		return []*data.FileStat{stat}, nil
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	// List objects with delimiter to get only direct children
	var stats []*data.FileStat
	for object := range sb.client.ListObjects(ctx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}

		// Skip the directory object itself
		if object.Key == prefix {
			continue
		}

		stats = append(stats, sb.toFileStat(strings.TrimSuffix(object.Key, "/"), object))
	}

	return stats, nil
}

func (sb *S3Backend) HeadObject(ctx context.Context, key string) (*data.FileStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.headUnsafe(ctx, key)
}

func (sb *S3Backend) TruncateObject(ctx context.Context, key string, size int64) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	stat, err := sb.headUnsafe(ctx, key)
	if err != nil {
		return err
	}
	if stat.Mode.IsDir() {
		return data.ErrIsDirectory
	}

	// If size is the same, no need to do anything
	if stat.Size == size {
		return nil
	}

	existing, err := sb.readAllUnsafe(ctx, key, min(stat.Size, size))
	if err != nil {
		return err
	}

	newData := make([]byte, size)
	copy(newData, existing)

	_, err = sb.client.PutObject(ctx, sb.bucketName, key, bytes.NewReader(newData), int64(len(newData)), minio.PutObjectOptions{
		ContentType: string(stat.ContentType),
	})
	return err
}

// Helper methods

// headUnsafe resolves key to a file, a directory marker or a plain prefix.
// MUST be called while holding at least a read lock.
func (sb *S3Backend) headUnsafe(ctx context.Context, key string) (*data.FileStat, error) {
	// Handle empty key (root of bucket) - return synthetic directory stat
	if key == "" {
		return &data.FileStat{Mode: data.DefaultDirMode, ContentType: data.ContentTypeDirectory}, nil
	}

	objInfo, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return sb.toFileStat(key, objInfo), nil
	}
	if !isNotExist(err) {
		return nil, err
	}

	objInfo, err = sb.client.StatObject(ctx, sb.bucketName, key+"/", minio.StatObjectOptions{})
	if err == nil {
		return sb.toFileStat(key, objInfo), nil
	}
	if !isNotExist(err) {
		return nil, err
	}

	// A prefix with objects below it is an implicit directory
	for object := range sb.client.ListObjects(ctx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:  key + "/",
		MaxKeys: 1,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		return &data.FileStat{Key: key, Mode: data.DefaultDirMode, ContentType: data.ContentTypeDirectory}, nil
	}

	return nil, data.ErrNotExist
}

// readAllUnsafe reads the first size bytes of key.
// MUST be called while holding at least a read lock.
func (sb *S3Backend) readAllUnsafe(ctx context.Context, key string, size int64) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(0, size-1); err != nil {
		return nil, err
	}

	object, err := sb.client.GetObject(ctx, sb.bucketName, key, opts)
	if err != nil {
		return nil, err
	}
	defer object.Close()

	return io.ReadAll(object)
}

// toFileStat converts minio.ObjectInfo to FileStat
func (sb *S3Backend) toFileStat(key string, objInfo minio.ObjectInfo) *data.FileStat {
	stat := &data.FileStat{
		Key:         key,
		Size:        objInfo.Size,
		Mode:        data.DefaultFileMode,
		ModifyTime:  objInfo.LastModified,
		CreateTime:  objInfo.LastModified, // S3 doesn't track creation time separately
		ContentType: data.ContentType(objInfo.ContentType),
		ETag:        objInfo.ETag,
	}

	if isDirectory(objInfo) {
		stat.Mode = data.DefaultDirMode
		stat.Size = 0
		stat.ContentType = data.ContentTypeDirectory
	}

	return stat
}
