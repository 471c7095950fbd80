package data

import "io/fs"

// FileMode represents the type and permission bits of a stored object.
// The bit layout follows Unix conventions.
type FileMode uint32

const (
	ModeDir     FileMode = 1 << 31 // d: directory
	ModeSymlink FileMode = 1 << 30 // L: symbolic link
	ModeOther   FileMode = 1 << 25 // ?: anything that is neither file, directory nor link

	ModePerm FileMode = 0777

	// DefaultFileMode and DefaultDirMode are used when a sink creates objects.
	DefaultFileMode FileMode = 0644
	DefaultDirMode  FileMode = ModeDir | 0755
)

// IsDir reports whether m describes a directory.
func (m FileMode) IsDir() bool {
	return m&ModeDir != 0
}

// IsSymlink reports whether m describes a symbolic link.
func (m FileMode) IsSymlink() bool {
	return m&ModeSymlink != 0
}

// IsRegular reports whether m describes a regular file.
func (m FileMode) IsRegular() bool {
	return m&(ModeDir|ModeSymlink|ModeOther) == 0
}

// Perm returns the Unix permission bits in m.
func (m FileMode) Perm() FileMode {
	return m & ModePerm
}

// FromFileMode converts an io/fs mode into a FileMode.
func FromFileMode(mode fs.FileMode) FileMode {
	m := FileMode(mode.Perm())
	switch {
	case mode.IsDir():
		m |= ModeDir
	case mode&fs.ModeSymlink != 0:
		m |= ModeSymlink
	case !mode.IsRegular():
		m |= ModeOther
	}
	return m
}

// String returns the mode in ls -l format, e.g. "drwxr-xr-x".
func (m FileMode) String() string {
	var buf [10]byte

	switch {
	case m.IsDir():
		buf[0] = 'd'
	case m.IsSymlink():
		buf[0] = 'L'
	case m&ModeOther != 0:
		buf[0] = '?'
	default:
		buf[0] = '-'
	}

	const rwx = "rwxrwxrwx"
	for i, c := range rwx {
		if m&(1<<uint(9-1-i)) != 0 {
			buf[i+1] = byte(c)
		} else {
			buf[i+1] = '-'
		}
	}

	return string(buf[:])
}
