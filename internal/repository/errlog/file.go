// Package errlog persists the failure that stopped a pipeline run.
package errlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// File holds the last failure as a JSON object.
type File struct {
	path string
}

// NewFile creates an error log handle.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path)}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Write replaces the file with failure.
func (f *File) Write(failure domain.Failure) error {
	data, err := json.MarshalIndent(failure, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", f.path, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Read returns the persisted failure.
func (f *File) Read() (domain.Failure, error) {
	var failure domain.Failure
	data, err := os.ReadFile(f.path)
	if err != nil {
		return failure, fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, &failure); err != nil {
		return failure, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return failure, nil
}
