package data

import "fmt"

// UnknownOffset marks a slice whose position in the stream is not known.
const UnknownOffset int64 = -1

// Slice is an immutable view over a range of bytes belonging to a resource.
// Callers must not modify the backing array after constructing a Slice.
type Slice struct {
	bytes  []byte
	offset int64
}

// NewSlice returns a slice positioned at offset. Use UnknownOffset for
// streams without random access.
func NewSlice(b []byte, offset int64) Slice {
	if offset < 0 {
		offset = UnknownOffset
	}
	return Slice{bytes: b, offset: offset}
}

// Bytes returns the payload.
func (s Slice) Bytes() []byte {
	return s.bytes
}

// Len returns the payload length.
func (s Slice) Len() int {
	return len(s.bytes)
}

// Offset returns the absolute offset or UnknownOffset.
func (s Slice) Offset() int64 {
	return s.offset
}

// HasOffset reports whether the slice knows its position.
func (s Slice) HasOffset() bool {
	return s.offset >= 0
}

// End returns the offset just past the slice, or UnknownOffset.
func (s Slice) End() int64 {
	if !s.HasOffset() {
		return UnknownOffset
	}
	return s.offset + int64(len(s.bytes))
}

func (s Slice) String() string {
	if !s.HasOffset() {
		return fmt.Sprintf("slice[%d bytes]", len(s.bytes))
	}
	return fmt.Sprintf("slice[%d:%d]", s.offset, s.End())
}
