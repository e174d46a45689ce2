// Package recovery persists enriched records that never reached the index,
// so they can be replayed without paying for embeddings again.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// zstdExt marks a zstd-compressed recovery file.
const zstdExt = ".zst"

// File is a recovery file: a JSON array of enriched records, zstd-compressed
// when the name ends in ".zst".
type File struct {
	path string
}

// NewFile creates a recovery file handle.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path)}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Compressed reports whether the file is zstd-compressed.
func (f *File) Compressed() bool { return strings.HasSuffix(f.path, zstdExt) }

// Write replaces the file with records.
func (f *File) Write(records []domain.EnrichedRecord) (err error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", f.path, err)
	}

	tmp := f.path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	var w io.Writer = out
	var enc *zstd.Encoder
	if f.Compressed() {
		enc, err = zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		w = enc
	}

	if records == nil {
		records = []domain.EnrichedRecord{}
	}
	if err = json.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if enc != nil {
		if err = enc.Close(); err != nil {
			return fmt.Errorf("flush zstd: %w", err)
		}
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Read loads every record of the file.
func (f *File) Read() ([]domain.EnrichedRecord, error) {
	in, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("recovery file %s: %w", f.path, domain.ErrInput)
		}
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer in.Close()

	var r io.Reader = in
	if f.Compressed() {
		dec, err := zstd.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var records []domain.EnrichedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", f.path, err, domain.ErrInput)
	}
	return records, nil
}

// Clear removes the file. A missing file is already clear.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}
