package backend_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sort"
	"testing"

	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/backend/consul"
	"github.com/mwantia/feather/backend/direct"
	"github.com/mwantia/feather/backend/ephemeral"
	"github.com/mwantia/feather/backend/postgres"
	"github.com/mwantia/feather/backend/s3"
	"github.com/mwantia/feather/backend/sqlite"
	"github.com/mwantia/feather/data"
)

// TestBackendFactory creates a new, unopened backend instance for testing.
type TestBackendFactory func(t *testing.T) (backend.ObjectStorageBackend, error)

// GetTestBackendFactories returns all backend implementations to test. The
// network backends are only included when their server is configured.
func GetTestBackendFactories() map[string]TestBackendFactory {
	factories := map[string]TestBackendFactory{
		"ephemeral": func(t *testing.T) (backend.ObjectStorageBackend, error) {
			return ephemeral.NewEphemeralBackend(), nil
		},
		"sqlite": func(t *testing.T) (backend.ObjectStorageBackend, error) {
			return sqlite.NewSQLiteBackend(":memory:")
		},
		"direct": func(t *testing.T) (backend.ObjectStorageBackend, error) {
			return direct.NewDirectBackend(t.TempDir())
		},
	}

	if conn := os.Getenv("FEATHER_TEST_POSTGRES"); conn != "" {
		factories["postgres"] = func(t *testing.T) (backend.ObjectStorageBackend, error) {
			return postgres.NewPostgresBackend(conn)
		}
	}
	if addr := os.Getenv("FEATHER_TEST_CONSUL"); addr != "" {
		factories["consul"] = func(t *testing.T) (backend.ObjectStorageBackend, error) {
			return consul.NewConsulBackend(&consul.ConsulBackendConfig{
				Address: addr,
				Prefix:  "feather-test/" + t.Name(),
			})
		}
	}
	if endpoint := os.Getenv("FEATHER_TEST_S3_ENDPOINT"); endpoint != "" {
		factories["s3"] = func(t *testing.T) (backend.ObjectStorageBackend, error) {
			return s3.NewS3Backend(endpoint,
				os.Getenv("FEATHER_TEST_S3_BUCKET"),
				os.Getenv("FEATHER_TEST_S3_ACCESS_KEY"),
				os.Getenv("FEATHER_TEST_S3_SECRET_KEY"), false)
		}
	}

	return factories
}

func openBackend(tst *testing.T, factory TestBackendFactory) backend.ObjectStorageBackend {
	tst.Helper()

	b, err := factory(tst)
	if err != nil {
		tst.Fatalf("Init failed: %v", err)
	}
	if err := b.Open(tst.Context()); err != nil {
		tst.Fatalf("Open failed: %v", err)
	}
	tst.Cleanup(func() {
		_ = b.Close(tst.Context())
	})
	return b
}

// TestAllBackends_ObjectOperations verifies create, write, read and head
// across all backend implementations.
func TestAllBackends_ObjectOperations(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := openBackend(tst, factory)

			if _, err := b.CreateObject(ctx, "test.txt", data.DefaultFileMode); err != nil {
				tst.Fatalf("CreateObject failed: %v", err)
			}

			buffer := []byte("hello world")
			if n, err := b.WriteObject(ctx, "test.txt", 0, buffer); err != nil || n != len(buffer) {
				tst.Fatalf("WriteObject failed: n=%d err=%v", n, err)
			}
			// Write past the current end
			if _, err := b.WriteObject(ctx, "test.txt", int64(len(buffer)), []byte("!")); err != nil {
				tst.Fatalf("WriteObject at offset failed: %v", err)
			}

			stat, err := b.HeadObject(ctx, "test.txt")
			if err != nil {
				tst.Fatalf("HeadObject failed: %v", err)
			}
			if stat.Size != 12 || stat.Mode.IsDir() {
				tst.Errorf("Expected 12 byte file, got size=%d mode=%v", stat.Size, stat.Mode)
			}

			got := make([]byte, 5)
			n, err := b.ReadObject(ctx, "test.txt", 6, got)
			if err != nil {
				tst.Fatalf("ReadObject failed: %v", err)
			}
			if string(got[:n]) != "world" {
				tst.Errorf("Expected %q, got %q", "world", got[:n])
			}

			if _, err := b.ReadObject(ctx, "test.txt", 12, got); !errors.Is(err, io.EOF) {
				tst.Errorf("Expected io.EOF at end of object, got %v", err)
			}

			if _, err := b.CreateObject(ctx, "test.txt", data.DefaultFileMode); !errors.Is(err, data.ErrExist) {
				tst.Errorf("Expected ErrExist, got %v", err)
			}
		})
	}
}

// TestAllBackends_Directories verifies directory creation, listing and
// deletion rules.
func TestAllBackends_Directories(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := openBackend(tst, factory)

			if _, err := b.CreateObject(ctx, "dir", data.DefaultDirMode); err != nil {
				tst.Fatalf("CreateObject dir failed: %v", err)
			}
			for _, key := range []string{"dir/a", "dir/b"} {
				if _, err := b.CreateObject(ctx, key, data.DefaultFileMode); err != nil {
					tst.Fatalf("CreateObject %s failed: %v", key, err)
				}
			}
			if _, err := b.CreateObject(ctx, "dir/sub", data.DefaultDirMode); err != nil {
				tst.Fatalf("CreateObject sub failed: %v", err)
			}
			if _, err := b.CreateObject(ctx, "dir/sub/c", data.DefaultFileMode); err != nil {
				tst.Fatalf("CreateObject nested failed: %v", err)
			}

			stats, err := b.ListObjects(ctx, "dir")
			if err != nil {
				tst.Fatalf("ListObjects failed: %v", err)
			}
			var names []string
			for _, stat := range stats {
				names = append(names, stat.Name())
			}
			sort.Strings(names)
			if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "sub" {
				tst.Errorf("Expected [a b sub], got %v", names)
			}

			root, err := b.ListObjects(ctx, "")
			if err != nil {
				tst.Fatalf("ListObjects root failed: %v", err)
			}
			if len(root) != 1 || root[0].Name() != "dir" || !root[0].Mode.IsDir() {
				tst.Errorf("Expected only 'dir' at root, got %d entries", len(root))
			}

			if _, err := b.CreateObject(ctx, "missing/x", data.DefaultFileMode); err == nil {
				tst.Errorf("Expected error creating below a missing parent")
			}
			if _, err := b.CreateObject(ctx, "dir/a/x", data.DefaultFileMode); err == nil {
				tst.Errorf("Expected error creating below a file")
			}

			if err := b.DeleteObject(ctx, "dir", false); !errors.Is(err, data.ErrDirectoryNotEmpty) {
				tst.Errorf("Expected ErrDirectoryNotEmpty, got %v", err)
			}
			if err := b.DeleteObject(ctx, "dir", true); err != nil {
				tst.Fatalf("DeleteObject force failed: %v", err)
			}
			if _, err := b.HeadObject(ctx, "dir/sub/c"); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist after delete, got %v", err)
			}
		})
	}
}

// TestAllBackends_Truncate verifies shrinking and growing objects.
func TestAllBackends_Truncate(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			b := openBackend(tst, factory)

			if _, err := b.CreateObject(ctx, "file", data.DefaultFileMode); err != nil {
				tst.Fatalf("CreateObject failed: %v", err)
			}
			if _, err := b.WriteObject(ctx, "file", 0, []byte("0123456789")); err != nil {
				tst.Fatalf("WriteObject failed: %v", err)
			}

			if err := b.TruncateObject(ctx, "file", 4); err != nil {
				tst.Fatalf("TruncateObject failed: %v", err)
			}
			buf := make([]byte, 16)
			n, err := b.ReadObject(ctx, "file", 0, buf)
			if err != nil {
				tst.Fatalf("ReadObject failed: %v", err)
			}
			if !bytes.Equal(buf[:n], []byte("0123")) {
				tst.Errorf("Expected %q, got %q", "0123", buf[:n])
			}

			if err := b.TruncateObject(ctx, "file", 6); err != nil {
				tst.Fatalf("TruncateObject grow failed: %v", err)
			}
			stat, err := b.HeadObject(ctx, "file")
			if err != nil {
				tst.Fatalf("HeadObject failed: %v", err)
			}
			if stat.Size != 6 {
				tst.Errorf("Expected size 6, got %d", stat.Size)
			}
		})
	}
}

func TestEphemeral_MaxObjectSize(t *testing.T) {
	ctx := t.Context()
	b := ephemeral.NewEphemeralBackend()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if got := b.GetCapabilities().MaxObjectSize; got != ephemeral.MaxObjectSize {
		t.Errorf("Expected capability limit %d, got %d", ephemeral.MaxObjectSize, got)
	}
	if _, err := b.CreateObject(ctx, "file", data.DefaultFileMode); err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}
	if _, err := b.WriteObject(ctx, "file", ephemeral.MaxObjectSize-1, []byte("ab")); !errors.Is(err, data.ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge writing past the limit, got %v", err)
	}
	if err := b.TruncateObject(ctx, "file", ephemeral.MaxObjectSize+1); !errors.Is(err, data.ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge truncating past the limit, got %v", err)
	}
}

func TestAllBackends_Address(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			b, err := factory(tst)
			if err != nil {
				tst.Fatalf("Init failed: %v", err)
			}
			defer b.Close(tst.Context())

			if b.Name() != name {
				tst.Errorf("Expected name %q, got %q", name, b.Name())
			}
			if b.Address() == "" {
				tst.Errorf("Expected non-empty address")
			}
			if !b.GetCapabilities().Contains(backend.CapabilityObjectStorage) {
				tst.Errorf("Expected object storage capability")
			}
		})
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		key, parent string
	}{
		{"a", ""},
		{"a/b", "a"},
		{"a/b/c", "a/b"},
	}
	for _, test := range tests {
		if got := backend.ParentKey(test.key); got != test.parent {
			t.Errorf("ParentKey(%q) = %q, expected %q", test.key, got, test.parent)
		}
	}

	if got := backend.ChildKey("", "a"); got != "a" {
		t.Errorf("ChildKey root = %q", got)
	}
	if got := backend.ChildKey("a", "b"); got != "a/b" {
		t.Errorf("ChildKey = %q", got)
	}
	if !backend.IsDirectChild("a", "a/b") || backend.IsDirectChild("a", "a/b/c") || !backend.IsDirectChild("", "x") {
		t.Errorf("IsDirectChild mismatch")
	}
}
