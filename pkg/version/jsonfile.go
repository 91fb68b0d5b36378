package version

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONFile mirrors the history to a single indented JSON array, rewritten on every save
type JSONFile struct {
	Path string
}

// NewJSONFile creates a JSON file backend
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path}
}

// Load reads the history. A missing file is an empty history.
func (f *JSONFile) Load() ([]Entry, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return entries, nil
}

// Persist overwrites the file with the whole history
func (f *JSONFile) Persist(history []Entry) error {
	// Keep <, > and & literal so the file stays readable
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(history); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// Write beside the target and rename so a failed write leaves the old file intact
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}

// Close is a no-op; the file is not held open between saves
func (f *JSONFile) Close() error {
	return nil
}
