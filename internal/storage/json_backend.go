package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONBackend implements Store using a single JSON document on disk.
//
// The file holds one object mapping each key to its raw value. Every write
// rewrites the whole document through a temporary file and os.Rename so the
// file is never left half written.
type JSONBackend struct {
	// Path is the absolute path to the JSON document.
	Path string

	mu sync.Mutex
}

// NewJSONBackend creates a new JSONBackend for the given file path.
//
// Parent directories are created on the first write.
func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{
		Path: path,
	}
}

// load reads the whole document.
//
// A missing file is an empty document. So is a file that does not decode, so
// a corrupted store starts fresh instead of wedging the host. Any other read
// failure is returned and the document is left alone.
func (b *JSONBackend) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(b.Path)
	if os.IsNotExist(err) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return make(map[string]json.RawMessage), nil
	}

	return doc, nil
}

// write atomically replaces the document on disk.
func (b *JSONBackend) write(doc map[string]json.RawMessage) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	data = append(data, '\n')

	tmpFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()

	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write store: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write store: %w", closeErr)
	}

	if err := os.Rename(tmpPath, b.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store: %w", err)
	}

	return nil
}

// Get returns the raw value for key or ErrNotFound.
func (b *JSONBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(raw), nil
}

// Set stores value under key. The value must be valid JSON.
func (b *JSONBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("failed to set %q: value is not valid JSON", key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	doc[key] = json.RawMessage(append([]byte(nil), value...))
	return b.write(doc)
}

// Remove deletes key from the document.
func (b *JSONBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return b.write(doc)
}

// Close is a no-op; the JSON backend holds no open handles.
func (b *JSONBackend) Close() error {
	return nil
}
