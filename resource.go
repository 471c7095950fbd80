package feather

import (
	"fmt"

	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
)

// Resource is a handle to zero, one or many objects of a session, addressed
// by an absolute path. It holds no state of its own and is safe to share.
type Resource struct {
	session Session
	path    *path.Path
}

// NewResource binds p to s. Relative paths are resolved against the root.
func NewResource(s Session, p *path.Path) Resource {
	if p == nil {
		p = path.Root
	}
	if !p.IsAbsolute() {
		p = path.Root.Append(p)
	}
	return Resource{session: s, path: p}
}

func (r Resource) Session() Session {
	return r.session
}

func (r Resource) Path() *path.Path {
	return r.path
}

// IsZero reports whether r was never bound to a session.
func (r Resource) IsZero() bool {
	return r.session == nil
}

// Select returns the resource at p below r.
func (r Resource) Select(p *path.Path) Resource {
	return r.session.Select(r.path.Append(p))
}

// SelectString parses s as a path relative to r and selects it.
func (r Resource) SelectString(s string) (Resource, error) {
	p, err := r.path.AppendString(s)
	if err != nil {
		return Resource{}, err
	}
	return r.session.Select(p), nil
}

// Parent returns the resource one level up.
func (r Resource) Parent() Resource {
	return r.session.Select(r.path.Up())
}

// IsSingleton reports whether r denotes at most one object, which is the
// case when its path has no glob segment.
func (r Resource) IsSingleton() bool {
	return !r.path.IsGlob()
}

func (r Resource) Stat() *promise.Promise[*data.Stat] {
	return r.session.Stat(r)
}

func (r Resource) Mkdir() (*promise.Promise[struct{}], error) {
	return r.session.Mkdir(r)
}

func (r Resource) Unlink() (*promise.Promise[struct{}], error) {
	return r.session.Unlink(r)
}

func (r Resource) Tap() (Tap, error) {
	return r.session.Tap(r)
}

func (r Resource) Sink() (Sink, error) {
	return r.session.Sink(r)
}

// Subresources maps the names of r's children to their resources. A
// resource that is not a collection yields an empty map. Glob resources are
// rejected synchronously.
func (r Resource) Subresources() (*promise.Promise[map[string]Resource], error) {
	if !r.IsSingleton() {
		return nil, fmt.Errorf("%w: subresources of glob '%s'", data.ErrUnsupported, r.path)
	}

	return promise.Map(r.Stat(), func(stat *data.Stat) (map[string]Resource, error) {
		children := make(map[string]Resource)
		if !stat.Dir {
			return children, nil
		}

		for _, child := range stat.Files() {
			children[child.Name] = r.session.Select(r.path.AppendLiteral(child.Name))
		}
		return children, nil
	}), nil
}

// ReselectOn returns the resource at the same path on s. It fails with
// data.ErrInvalid unless s is equivalent to r's session.
func (r Resource) ReselectOn(s Session) (Resource, error) {
	if s == nil || r.session == nil || s.Key() != r.session.Key() {
		return Resource{}, fmt.Errorf("%w: cannot reselect '%s' onto a different session", data.ErrInvalid, r)
	}
	if s == r.session {
		return r, nil
	}
	return s.Select(r.path), nil
}

// Equal reports whether both resources refer to the same path on equivalent
// sessions.
func (r Resource) Equal(other Resource) bool {
	if r.path == nil || other.path == nil {
		return r.path == other.path && r.session == other.session
	}
	if r.session == nil || other.session == nil {
		return r.session == other.session && r.path.Equal(other.path)
	}
	return r.session.Key() == other.session.Key() && r.path.Equal(other.path)
}

func (r Resource) String() string {
	if r.path == nil {
		return ""
	}
	if r.session == nil {
		return r.path.String()
	}
	return r.session.Key() + r.path.String()
}
