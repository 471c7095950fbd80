package path

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mwantia/feather/data"
)

// Escape returns name with "\", "/" and "*" escaped so it can be used as a
// literal segment inside a path string.
func Escape(name string) string {
	if !strings.ContainsAny(name, `\/*`) {
		return name
	}

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '\\', '/', '*':
			b.WriteByte('\\')
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

// split breaks an escaped path string on unescaped slashes. Segments keep
// their escapes.
func split(s string) ([]string, error) {
	var (
		segments []string
		start    int
		escaped  bool
	)

	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '/':
			segments = append(segments, s[start:i])
			start = i + 1
		}
	}

	if escaped {
		return nil, fmt.Errorf("%w: dangling escape in '%s'", data.ErrInvalidPath, s)
	}

	return append(segments, s[start:]), nil
}

// unescapeSegment splits a raw segment on unescaped "*" and unescapes the
// fragments in between. A segment without wildcards yields one fragment.
func unescapeSegment(segment string) ([]string, bool, error) {
	var (
		fragments []string
		b         strings.Builder
		escaped   bool
		glob      bool
	)

	// Names are bytes and need not be valid UTF-8.
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '*':
			glob = true
			fragments = append(fragments, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}

	if escaped {
		return nil, false, fmt.Errorf("%w: dangling escape in '%s'", data.ErrInvalidPath, segment)
	}

	return append(fragments, b.String()), glob, nil
}

// compileGlob reassembles the fragments of a glob segment into its canonical
// escaped form and the anchored expression matching it. Only "*" is a
// wildcard; everything else is quoted.
func compileGlob(fragments []string) (string, *regexp.Regexp) {
	escaped := make([]string, len(fragments))
	quoted := make([]string, len(fragments))
	for i, fragment := range fragments {
		escaped[i] = Escape(fragment)
		quoted[i] = quoteFragment(fragment)
	}

	expr := "^" + strings.Join(quoted, ".*") + "$"
	return strings.Join(escaped, "*"), regexp.MustCompile(expr)
}

// quoteFragment quotes fragment for use in an expression. The matcher reads
// every byte that is not valid UTF-8 as U+FFFD, so such bytes are quoted as
// that rune.
func quoteFragment(fragment string) string {
	if utf8.ValidString(fragment) {
		return regexp.QuoteMeta(fragment)
	}

	var b strings.Builder
	for len(fragment) > 0 {
		r, size := utf8.DecodeRuneInString(fragment)
		if r == utf8.RuneError && size == 1 {
			b.WriteString(`\x{FFFD}`)
		} else {
			b.WriteString(regexp.QuoteMeta(fragment[:size]))
		}
		fragment = fragment[size:]
	}
	return b.String()
}
