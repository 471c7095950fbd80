package path

import (
	"runtime"
	"sync"
	"weak"
)

type internKey struct {
	parent *Path
	kind   kind
	name   string
}

// The table only holds weak references; an entry is dropped by a cleanup
// once its path has been collected.
var table = struct {
	sync.Mutex
	nodes map[internKey]weak.Pointer[Path]
}{
	nodes: make(map[internKey]weak.Pointer[Path]),
}

// intern returns the canonical node for (parent, kind, name), building it
// with create when no live node exists.
func intern(parent *Path, k kind, name string, create func() *Path) *Path {
	key := internKey{parent: parent, kind: k, name: name}

	table.Lock()
	defer table.Unlock()

	if ref, ok := table.nodes[key]; ok {
		if p := ref.Value(); p != nil {
			return p
		}
	}

	p := create()
	ref := weak.Make(p)
	table.nodes[key] = ref
	runtime.AddCleanup(p, release, internEntry{key: key, ref: ref})

	return p
}

type internEntry struct {
	key internKey
	ref weak.Pointer[Path]
}

func release(entry internEntry) {
	table.Lock()
	defer table.Unlock()

	// A new node may have been interned under the same key meanwhile.
	if current, ok := table.nodes[entry.key]; ok && current == entry.ref {
		delete(table.nodes, entry.key)
	}
}

// interned returns the number of live entries in the table.
func interned() int {
	table.Lock()
	defer table.Unlock()

	return len(table.nodes)
}
