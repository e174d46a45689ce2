// Package ledger persists the token usage ledger as a JSON file.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/catalogindex/internal/domain/usage"
)

// File reads and writes ledger entries at a fixed path.
type File struct {
	path string
}

// NewFile creates a ledger file store.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path)}
}

// Path returns the ledger file location.
func (f *File) Path() string { return f.path }

// Load returns the persisted entries. A missing file yields an empty history.
func (f *File) Load() ([]usage.Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []usage.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", f.path, err)
	}
	return entries, nil
}

// Flush writes all ledger entries, replacing the file atomically.
func (f *File) Flush(l *usage.Ledger) error {
	data, err := json.MarshalIndent(l.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	return writeAtomic(f.path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
