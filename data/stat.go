package data

import (
	"sync"
	"time"
)

// Stat is a metadata snapshot of a resource as returned by a session. A
// directory stat may carry the stats of its children.
type Stat struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Dir        bool      `json:"dir,omitempty"`
	File       bool      `json:"file,omitempty"`
	Link       string    `json:"link,omitempty"`
	Mode       FileMode  `json:"mode"`
	ModifyTime time.Time `json:"modify_time"`

	mu    sync.Mutex
	files []*Stat
	// The aggregates are valid only while their flag is set, so the zero
	// value starts with an empty cache.
	totalSize   int64
	totalCount  int64
	sizeCached  bool
	countCached bool
}

// NewStat returns an empty stat called name.
func NewStat(name string) *Stat {
	return &Stat{Name: name}
}

// IsSymlink reports whether the stat describes a symbolic link.
func (s *Stat) IsSymlink() bool {
	return s.Link != "" || s.Mode.IsSymlink()
}

// Files returns the child stats. The returned slice must not be modified.
func (s *Stat) Files() []*Stat {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.files
}

// SetFiles replaces the children and invalidates the cached aggregates.
func (s *Stat) SetFiles(files []*Stat) *Stat {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = files
	s.sizeCached = false
	s.countCached = false
	return s
}

// Child returns the child stat called name, if present.
func (s *Stat) Child(name string) (*Stat, bool) {
	for _, f := range s.Files() {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// TotalSize returns the size of the whole tree below and including s.
func (s *Stat) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sizeCached {
		return s.totalSize
	}

	total := s.Size
	if s.Dir {
		for _, f := range s.files {
			total += f.TotalSize()
		}
	}

	s.totalSize, s.sizeCached = total, true
	return total
}

// TotalCount returns the number of entries in the tree, counting s itself.
func (s *Stat) TotalCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countCached {
		return s.totalCount
	}

	count := int64(1)
	if s.Dir {
		for _, f := range s.files {
			count += f.TotalCount()
		}
	}

	s.totalCount, s.countCached = count, true
	return count
}
