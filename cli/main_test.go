package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	if isTerminal(f) {
		t.Errorf("Expected a regular file not to be a terminal")
	}
}
