// Package archive implements the append-merge JSON documents written next to
// the downloads: timeline.json and favorites.json.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	TimelineFile  = "timeline.json"
	FavoritesFile = "favorites.json"
)

// Document is a whole-file JSON array. Load and Rewrite are the only
// operations; there is no streaming append.
type Document interface {
	// Load returns the current records. A document that does not exist yet is empty.
	Load() ([]json.RawMessage, error)
	// Rewrite replaces the whole document with records.
	Rewrite(records []json.RawMessage) error
}

// AppendMerge rewrites doc as its existing records followed by records.
// Appending nothing leaves the document untouched.
func AppendMerge(doc Document, records []json.RawMessage) error {
	if len(records) == 0 {
		return nil
	}

	existing, err := doc.Load()
	if err != nil {
		return err
	}

	combined := make([]json.RawMessage, 0, len(existing)+len(records))
	combined = append(combined, existing...)
	combined = append(combined, records...)
	return doc.Rewrite(combined)
}

// FileDocument stores the array in a file on disk.
type FileDocument struct {
	Path string
}

func NewFileDocument(path string) *FileDocument {
	return &FileDocument{Path: path}
}

func (d *FileDocument) Load() ([]json.RawMessage, error) {
	data, err := os.ReadFile(d.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.Path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []json.RawMessage{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", d.Path, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

func (d *FileDocument) Rewrite(records []json.RawMessage) error {
	data, err := encode(records)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.Path, err)
	}

	err = d.write(data)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(d.Path), 0o755); mkErr != nil {
			return fmt.Errorf("creating directory for %s: %w", d.Path, mkErr)
		}
		err = d.write(data)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", d.Path, err)
	}
	return nil
}

// write replaces the file through a temporary sibling so readers never see
// a half-written array.
func (d *FileDocument) write(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(d.Path), filepath.Base(d.Path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, d.Path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func encode(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MemoryDocument keeps the array in memory. Used in tests and dry runs.
type MemoryDocument struct {
	mu       sync.Mutex
	records  []json.RawMessage
	Rewrites int
}

func NewMemoryDocument(initial ...json.RawMessage) *MemoryDocument {
	return &MemoryDocument{records: append([]json.RawMessage{}, initial...)}
}

func (d *MemoryDocument) Load() ([]json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]json.RawMessage{}, d.records...), nil
}

func (d *MemoryDocument) Rewrite(records []json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append([]json.RawMessage{}, records...)
	d.Rewrites++
	return nil
}
