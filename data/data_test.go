package data

import (
	"context"
	"errors"
	"testing"
)

func TestStat_CachedAggregates(t *testing.T) {
	root := NewStat("root")
	root.Dir = true

	a := NewStat("a")
	a.File = true
	a.Size = 10

	sub := NewStat("sub")
	sub.Dir = true
	b := NewStat("b")
	b.File = true
	b.Size = 5
	sub.SetFiles([]*Stat{b})

	root.SetFiles([]*Stat{a, sub})

	if got := root.TotalSize(); got != 15 {
		t.Errorf("Expected total size 15, got %d", got)
	}
	if got := root.TotalCount(); got != 4 {
		t.Errorf("Expected total count 4, got %d", got)
	}

	c := NewStat("c")
	c.File = true
	c.Size = 7
	root.SetFiles([]*Stat{a, sub, c})

	if got := root.TotalSize(); got != 22 {
		t.Errorf("Expected total size 22 after SetFiles, got %d", got)
	}
	if got := root.TotalCount(); got != 5 {
		t.Errorf("Expected total count 5 after SetFiles, got %d", got)
	}
	if _, ok := root.Child("c"); !ok {
		t.Errorf("Expected child c to be found")
	}
}

func TestStat_Literal(t *testing.T) {
	file := &Stat{Name: "f", Size: 42, File: true}
	if got := file.TotalSize(); got != 42 {
		t.Errorf("Expected total size 42, got %d", got)
	}
	if got := file.TotalCount(); got != 1 {
		t.Errorf("Expected total count 1, got %d", got)
	}

	dir := &Stat{Name: "d", Dir: true}
	dir.SetFiles([]*Stat{file, {Name: "g", Size: 8, File: true}})
	if got := dir.TotalSize(); got != 50 {
		t.Errorf("Expected total size 50, got %d", got)
	}
	if got := dir.TotalCount(); got != 3 {
		t.Errorf("Expected total count 3, got %d", got)
	}
}

func TestFileStat_ToStat(t *testing.T) {
	fs := &FileStat{Key: "dir/file.txt", Mode: DefaultFileMode, Size: 42}
	stat := fs.ToStat()

	if stat.Name != "file.txt" || !stat.File || stat.Dir || stat.Size != 42 {
		t.Errorf("Unexpected stat %+v", stat)
	}

	link := &FileStat{Key: "l", Mode: ModeSymlink | 0777, LinkTarget: "target"}
	if !link.ToStat().IsSymlink() {
		t.Errorf("Expected symlink stat")
	}
}

func TestSlice_Offsets(t *testing.T) {
	s := NewSlice([]byte("hello"), 10)
	if !s.HasOffset() || s.End() != 15 || s.Len() != 5 {
		t.Errorf("Unexpected slice %v", s)
	}

	u := NewSlice([]byte("x"), -7)
	if u.HasOffset() || u.Offset() != UnknownOffset || u.End() != UnknownOffset {
		t.Errorf("Expected unknown offset, got %v", u)
	}
}

func TestErrors_Taxonomy(t *testing.T) {
	if !errors.Is(ErrCanceled, context.Canceled) || !IsCanceled(ErrCanceled) {
		t.Errorf("Expected ErrCanceled to match context.Canceled")
	}
	if !errors.Is(ErrTimeout, context.DeadlineExceeded) || !IsTimeout(ErrTimeout) {
		t.Errorf("Expected ErrTimeout to match context.DeadlineExceeded")
	}
	if IsCanceled(ErrTimeout) {
		t.Errorf("Expected timeout not to be classified as cancellation")
	}

	err := NewResourceError("stat", "/a", ErrNotExist)
	if !errors.Is(err, ErrNotExist) {
		t.Errorf("Expected resource error to unwrap to ErrNotExist")
	}
	if again := NewResourceError("read", "/b", err); again != err {
		t.Errorf("Expected nested resource error to keep the innermost context")
	}
	if !IsConfiguration(ErrOrientation) || IsConfiguration(ErrNotExist) {
		t.Errorf("Unexpected configuration classification")
	}

	var errs Errors
	errs.Add(nil)
	errs.Add(ErrExist)
	errs.Add(ErrNotExist)
	if errs.Len() != 2 || !errors.Is(errs.Errors(), ErrExist) {
		t.Errorf("Expected joined errors, got %v", errs.Errors())
	}
}
