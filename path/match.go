package path

// Matches reports whether other is selected by p. Both paths are walked
// towards their base segment by segment: a literal matches only the same
// literal, a glob matches any literal whose name satisfies the pattern (or
// the identical glob), and ".." matches "..". Paths of different length
// never match.
func (p *Path) Matches(other *Path) bool {
	if other == nil || p.depth != other.depth || p.absolute != other.absolute {
		return false
	}

	for a, b := p, other; a.depth > 0; a, b = a.parent, b.parent {
		if a == b {
			// Interned ancestors: the rest is identical.
			return true
		}
		if !a.matchSegment(b) {
			return false
		}
	}

	return true
}

func (p *Path) matchSegment(other *Path) bool {
	switch p.kind {
	case kindGlob:
		switch other.kind {
		case kindLiteral:
			return p.pattern.MatchString(other.name)
		case kindGlob:
			return p.name == other.name
		}
		return false
	default:
		return p.kind == other.kind && p.name == other.name
	}
}
