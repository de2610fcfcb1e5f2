// Package store persists whole-record JSON state files (token record,
// user memory, schedule configuration). Each file holds exactly one record;
// writes replace the file atomically via write-temp-then-rename so a crash
// mid-write never leaves a half-written record behind.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a single JSON record on disk.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a File backed by the given path. The file itself is not
// created until the first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Exists reports whether the backing file is present on disk.
func (f *File) Exists() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(f.path)
	return err == nil
}

// Load reads the record into v. Returns false with a nil error when the
// file does not exist — absence is a valid state, not an error.
func (f *File) Load(v any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return true, nil
}

// Save writes v as the new record, replacing any previous content
// atomically. The temp file lives in the same directory so the rename
// never crosses filesystems.
func (f *File) Save(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Remove deletes the backing file. Removing an absent file is not an error.
func (f *File) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", f.path, err)
	}
	return nil
}
