package feather

import (
	"github.com/mwantia/feather/path"
)

// Relative carries a value together with where it came from in the current
// traversal: the traversal root, the path from that root and the origin
// resource at that path. Root.Select(Path) always equals Origin unless the
// value was built with TrustedRelative.
type Relative[T any] struct {
	Value  T
	Root   Resource
	Path   *path.Path
	Origin Resource
}

// NewRelative derives the origin from root and p. Absolute paths are
// treated as relative to root.
func NewRelative[T any](value T, root Resource, p *path.Path) Relative[T] {
	p = relativePath(p)
	return Relative[T]{
		Value:  value,
		Root:   root,
		Path:   p,
		Origin: root.Select(p),
	}
}

// TrustedRelative skips deriving the origin. The caller guarantees that
// root.Select(p) equals origin.
func TrustedRelative[T any](value T, root Resource, p *path.Path, origin Resource) Relative[T] {
	return Relative[T]{
		Value:  value,
		Root:   root,
		Path:   relativePath(p),
		Origin: origin,
	}
}

// Rewrap binds a new value to the context of r.
func Rewrap[T, U any](r Relative[U], value T) Relative[T] {
	return Relative[T]{
		Value:  value,
		Root:   r.Root,
		Path:   r.Path,
		Origin: r.Origin,
	}
}

// IsRoot reports whether the value belongs to the traversal root itself.
func (r Relative[T]) IsRoot() bool {
	return r.Path == nil || r.Path.IsRoot()
}

// Key identifies the sub-resource within its traversal.
func (r Relative[T]) Key() string {
	if r.Path == nil {
		return path.Dot.String()
	}
	return r.Path.String()
}

func (r Relative[T]) String() string {
	return r.Origin.String()
}

func relativePath(p *path.Path) *path.Path {
	if p == nil {
		return path.Dot
	}
	if p.IsAbsolute() {
		rel, _ := p.Relativize(path.Root)
		return rel
	}
	return p
}
