package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DocumentFile persists a single JSON document on disk. Writes go through a
// temp file followed by a rename so a crash mid-write never leaves a
// truncated document behind.
type DocumentFile struct {
	path string
}

// NewDocumentFile ensures the parent directory exists and returns a handle.
func NewDocumentFile(path string) (*DocumentFile, error) {
	if path == "" {
		path = "./data/portal.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &DocumentFile{path: path}, nil
}

// Load decodes the document into out. A missing file is not an error; out is
// left untouched and false is returned.
func (f *DocumentFile) Load(out interface{}) (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read document: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	return true, nil
}

// Save encodes in as JSON and atomically replaces the document.
func (f *DocumentFile) Save(in interface{}) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".portal-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Path exposes the underlying path (useful for debugging).
func (f *DocumentFile) Path() string {
	return f.path
}
