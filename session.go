package feather

import (
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
)

// Session owns all stateful access to one endpoint. Resources are cheap
// handles; every operation on them is delegated to their session.
//
// Capability operations return a synchronous error for configuration
// problems (unsupported operation, glob resource) and report operational
// failures through the returned promise. Every operation implicitly waits
// for Initialize. After Close every operation fails with data.ErrClosed.
type Session interface {
	// Key identifies the endpoint. Sessions with equal keys are equivalent
	// and select the same physical objects.
	Key() string

	// Select returns the resource at p. Relative paths are taken from the
	// session root.
	Select(p *path.Path) Resource

	// Initialize establishes the underlying connection. It is idempotent and
	// safe to call concurrently; all callers share one promise.
	Initialize() *promise.Promise[Session]

	Stat(r Resource) *promise.Promise[*data.Stat]
	Mkdir(r Resource) (*promise.Promise[struct{}], error)
	Unlink(r Resource) (*promise.Promise[struct{}], error)
	Tap(r Resource) (Tap, error)
	Sink(r Resource) (Sink, error)

	// Close begins teardown. It is idempotent and returns the same promise
	// on every call.
	Close() *promise.Promise[struct{}]

	// IsClosed reports whether Close was called. It never starts a
	// connection.
	IsClosed() bool
}
