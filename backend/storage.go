package backend

import (
	"context"

	"github.com/mwantia/feather/data"
)

// ObjectStorageBackend stores objects by key. Keys are slash separated and
// relative to the backend root, which is the empty key.
type ObjectStorageBackend interface {
	Backend

	CreateObject(ctx context.Context, key string, mode data.FileMode) (*data.FileStat, error)

	// ReadObject reads into buf starting at offset. It returns io.EOF once
	// offset reaches the end of the object.
	ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error)

	WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error)

	DeleteObject(ctx context.Context, key string, force bool) error

	ListObjects(ctx context.Context, key string) ([]*data.FileStat, error)

	HeadObject(ctx context.Context, key string) (*data.FileStat, error)

	TruncateObject(ctx context.Context, key string, size int64) error
}
