package backend

import (
	"path"
	"strings"
)

// ParentKey returns the key of the directory holding key. The parent of a
// top level key is the root key "".
func ParentKey(key string) string {
	parent := path.Dir(key)
	if parent == "." || parent == "/" {
		return ""
	}
	return parent
}

// ChildKey joins a directory key and a child name.
func ChildKey(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// IsDirectChild reports whether key sits directly below dir.
func IsDirectChild(dir, key string) bool {
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}
	if !strings.HasPrefix(key, prefix) || key == dir {
		return false
	}
	return !strings.Contains(key[len(prefix):], "/")
}
