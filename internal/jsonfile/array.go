package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Array stores a []T as a single JSON array file.
type Array[T any] struct {
	path string
}

// NewArray returns a handle on the JSON array stored at path. The file is not
// touched until Init, Load or Save is called.
func NewArray[T any](path string) *Array[T] {
	return &Array[T]{path: path}
}

// Init creates the parent directory and, when the file is missing, writes an
// empty array. It is idempotent.
func (a *Array[T]) Init() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", a.path, err)
	}
	if _, err := os.Stat(a.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", a.path, err)
	}
	if err := writeFileAtomic(a.path, []byte("[]\n"), 0o644); err != nil {
		return fmt.Errorf("failed to create %s: %w", a.path, err)
	}
	return nil
}

// Load reads and decodes the whole file.
//
// The returned slice is never nil. An empty file or a literal null decode to an
// empty slice.
func (a *Array[T]) Load() ([]T, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a.path, err)
	}
	var rows []T
	if len(bytes.TrimSpace(data)) != 0 {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", a.path, err)
		}
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// Save encodes rows with a two-space indent and replaces the file.
func (a *Array[T]) Save(rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(a.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.path, err)
	}
	return nil
}
