package ecb

import (
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot stores the verbatim feed bytes from the last successful fetch so
// the process can restart without a network round-trip. The file stays
// opaque bytes until the loader decides to parse it.
type Snapshot struct {
	path string
}

// NewSnapshot points the store at a file path.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// Path returns the snapshot file location.
func (s *Snapshot) Path() string { return s.path }

// Read loads the last stored bytes. A missing or unreadable file is an
// ordinary miss for the caller, never fatal.
func (s *Snapshot) Read() ([]byte, error) {
	return os.ReadFile(s.path)
}

// Write replaces the stored bytes, creating the parent directory on first
// use. A failed write must never abort the fetch that produced the bytes;
// callers log and move on.
func (s *Snapshot) Write(data []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
