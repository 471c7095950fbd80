// Package path implements the immutable, interned, hierarchical addresses
// used to select resources from a session.
//
// A Path is a chain of nodes ending at a base: either Root ("/") for
// absolute paths or Dot (".") for relative ones. Segments are literal names
// or glob patterns where "*" is the only wildcard. Paths are interned, so
// two equal paths that are alive at the same time are the same pointer.
// Segments are written in escaped form: a backslash escapes "/", "*" and
// itself.
package path

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mwantia/feather/data"
)

type kind uint8

const (
	kindRoot kind = iota
	kindDot
	kindDotDot
	kindLiteral
	kindGlob
)

// Path is an immutable node in the interned path tree. The zero value is not
// usable; obtain paths from Root, Dot, Parse or the append methods.
type Path struct {
	parent *Path
	kind   kind

	// name is the unescaped name for literals and the canonical escaped
	// pattern for globs.
	name    string
	escaped string
	str     string

	depth    int
	absolute bool
	glob     bool
	pattern  *regexp.Regexp
}

var (
	// Root is the base of every absolute path.
	Root = &Path{kind: kindRoot, str: "/", absolute: true}
	// Dot is the base of every relative path.
	Dot = &Path{kind: kindDot, str: "."}
)

// Parse decomposes an escaped path string on unescaped slashes. Empty, "."
// and ".." segments are resolved structurally and trailing slashes are
// ignored. A "**" segment yields data.ErrUnsupportedGlob.
func Parse(s string) (*Path, error) {
	segments, err := split(s)
	if err != nil {
		return nil, err
	}

	p := Dot
	if strings.HasPrefix(s, "/") {
		p = Root
	}

	for _, segment := range segments {
		if p, err = p.appendEscaped(segment); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// MustParse is like Parse but panics on error. It is intended for constants
// and tests.
func MustParse(s string) *Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Implode builds an absolute path from unescaped segment names. It is the
// inverse of Explode for absolute literal paths.
func Implode(names []string) *Path {
	p := Root
	for _, name := range names {
		p = p.AppendLiteral(name)
	}
	return p
}

// Up returns the parent path. The parent of Root is Root; going above a
// relative base yields "..".
func (p *Path) Up() *Path {
	switch p.kind {
	case kindRoot:
		return p
	case kindDot, kindDotDot:
		return intern(p, kindDotDot, "..", func() *Path {
			return p.newChild(kindDotDot, "..", "..")
		})
	default:
		return p.parent
	}
}

// UpN applies Up n times.
func (p *Path) UpN(n int) *Path {
	for ; n > 0; n-- {
		p = p.Up()
	}
	return p
}

// Append returns p followed by every segment of other. The base of other is
// ignored, so appending an absolute path treats it as relative to p.
func (p *Path) Append(other *Path) *Path {
	if other == nil || other.IsRoot() {
		return p
	}

	result := p.Append(other.parent)
	switch other.kind {
	case kindDotDot:
		return result.Up()
	case kindGlob:
		return result.globChild(other.name, other.pattern)
	default:
		return result.AppendLiteral(other.name)
	}
}

// AppendString parses s as a relative path and appends it.
func (p *Path) AppendString(s string) (*Path, error) {
	other, err := Parse(strings.TrimLeft(s, "/"))
	if err != nil {
		return nil, err
	}
	return p.Append(other), nil
}

// AppendLiteral appends a single unescaped name. "." returns p and ".."
// returns p.Up(); any other name is taken literally, including "*".
func (p *Path) AppendLiteral(name string) *Path {
	switch name {
	case "", ".":
		return p
	case "..":
		return p.Up()
	}

	return intern(p, kindLiteral, name, func() *Path {
		return p.newChild(kindLiteral, name, Escape(name))
	})
}

// IsRoot reports whether p has no segments.
func (p *Path) IsRoot() bool {
	return p.kind == kindRoot || p.kind == kindDot
}

// IsAbsolute reports whether p is based at Root.
func (p *Path) IsAbsolute() bool {
	return p.absolute
}

// IsGlob reports whether any segment of p is a glob.
func (p *Path) IsGlob() bool {
	return p.glob
}

// Trunk returns the longest prefix of p without glob segments.
func (p *Path) Trunk() *Path {
	for p.glob {
		p = p.parent
	}
	return p
}

// Len returns the number of segments, counting ".." segments.
func (p *Path) Len() int {
	return p.depth
}

// Truncate returns the prefix of p with at most n segments.
func (p *Path) Truncate(n int) *Path {
	if n < 0 {
		n = 0
	}
	for p.depth > n {
		p = p.parent
	}
	return p
}

// Name returns the unescaped name of the last segment, or the pattern for
// a glob. Root and Dot return "".
func (p *Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return p.name
}

// Parent returns the structural parent, which differs from Up for Root and
// relative bases in that it never invents ".." segments.
func (p *Path) Parent() *Path {
	if p.parent == nil {
		return p
	}
	return p.parent
}

// Explode returns the segment names from the base outwards.
func (p *Path) Explode() []string {
	names := make([]string, p.depth)
	for n := p; n.depth > 0; n = n.parent {
		names[n.depth-1] = n.name
	}
	return names
}

// Relativize strips base from the front of p and returns the remainder as a
// relative path. It fails when base is not a prefix of p.
func (p *Path) Relativize(base *Path) (*Path, error) {
	if !base.Prefixes(p) {
		return nil, fmt.Errorf("%w: '%s' is not below '%s'", data.ErrInvalidPath, p, base)
	}

	rel := Dot
	for _, n := range p.nodes()[base.depth:] {
		switch n.kind {
		case kindGlob:
			rel = rel.globChild(n.name, n.pattern)
		case kindDotDot:
			rel = rel.Up()
		default:
			rel = rel.AppendLiteral(n.name)
		}
	}
	return rel, nil
}

// Prefixes reports whether p is a structural prefix of other, including the
// case where both are equal.
func (p *Path) Prefixes(other *Path) bool {
	if other == nil || p.absolute != other.absolute || p.depth > other.depth {
		return false
	}
	return other.Truncate(p.depth).Equal(p)
}

// Equal reports whether p and other have the same escaped string form.
func (p *Path) Equal(other *Path) bool {
	if p == other {
		return true
	}
	if other == nil {
		return false
	}
	return p.str == other.str
}

// String returns the canonical escaped form.
func (p *Path) String() string {
	return p.str
}

func (p *Path) nodes() []*Path {
	nodes := make([]*Path, p.depth)
	for n := p; n.depth > 0; n = n.parent {
		nodes[n.depth-1] = n
	}
	return nodes
}

func (p *Path) newChild(k kind, name, escaped string) *Path {
	child := &Path{
		parent:   p,
		kind:     k,
		name:     name,
		escaped:  escaped,
		depth:    p.depth + 1,
		absolute: p.absolute,
		glob:     p.glob || k == kindGlob,
	}

	switch p.kind {
	case kindRoot:
		child.str = "/" + escaped
	case kindDot:
		child.str = escaped
	default:
		child.str = p.str + "/" + escaped
	}

	return child
}

// appendEscaped appends one raw segment exactly as it appeared in a parsed
// string.
func (p *Path) appendEscaped(segment string) (*Path, error) {
	fragments, glob, err := unescapeSegment(segment)
	if err != nil {
		return nil, err
	}

	if !glob {
		return p.AppendLiteral(fragments[0]), nil
	}

	for _, fragment := range fragments[1 : len(fragments)-1] {
		if fragment == "" {
			return nil, fmt.Errorf("%w: '%s'", data.ErrUnsupportedGlob, segment)
		}
	}

	name, pattern := compileGlob(fragments)
	return p.globChild(name, pattern), nil
}

func (p *Path) globChild(name string, pattern *regexp.Regexp) *Path {
	return intern(p, kindGlob, name, func() *Path {
		child := p.newChild(kindGlob, name, name)
		child.pattern = pattern
		return child
	})
}
