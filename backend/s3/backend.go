package s3

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
)

// S3Backend stores objects in an S3 compatible bucket. Directories are
// zero-byte objects whose key ends in "/". Since S3 cannot write into an
// existing object, writes replace the whole object.
type S3Backend struct {
	mu sync.RWMutex

	client     *minio.Client
	endpoint   string
	bucketName string
}

func NewS3Backend(endpoint, bucketName, accessKey, secretKey string, useSsl bool) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrMalformedAddress, err)
	}

	return &S3Backend{
		client:     client,
		endpoint:   endpoint,
		bucketName: bucketName,
	}, nil
}

// Returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

func (sb *S3Backend) Address() string {
	return "s3://" + sb.endpoint + "/" + sb.bucketName
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	exists, err := sb.client.BucketExists(ctx, sb.bucketName)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrOpenFailed, err)
	}

	if !exists {
		return fmt.Errorf("%w: bucket '%s' does not exist", data.ErrOpenFailed, sb.bucketName)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityRandomRead,
			backend.CapabilityMultipart,
		},
		MaxObjectSize: 5368709120, // 5 GB, the single PUT limit
	}
}

func isDirectory(objInfo minio.ObjectInfo) bool {
	return strings.HasSuffix(objInfo.Key, "/") || objInfo.ContentType == string(data.ContentTypeDirectory)
}

func isNotExist(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
