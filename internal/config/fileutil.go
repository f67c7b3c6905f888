package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

// WriteAtomic replaces path with data. The bytes go to a sibling temp file
// that is synced and renamed over path, so readers see either the old or
// the new document.
func WriteAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	staged := f.Name()
	defer func() {
		if err != nil {
			os.Remove(staged)
		}
	}()

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Chmod(staged, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", staged, err)
	}
	if err = os.Rename(staged, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteJSON stores v at path as indented JSON with a trailing newline.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteAtomic(path, append(data, '\n'))
}

// LoadJSON reads the document at path, returning fallback when the file is
// missing, unreadable or malformed. It never fails.
func LoadJSON[T any](path string, fallback T) T {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	var v T
	if json.Unmarshal(data, &v) != nil {
		return fallback
	}
	return v
}

// MergeJSON writes the top-level fields of v over the JSON object stored at
// path. Keys v does not produce are kept as they are, so documents shared
// with other tools survive a typed read-modify-write. A missing or malformed
// file is replaced outright.
func MergeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("encode %s: value is not an object: %w", filepath.Base(path), err)
	}

	doc := LoadJSON[map[string]json.RawMessage](path, nil)
	if doc == nil {
		doc = make(map[string]json.RawMessage, len(fields))
	}
	maps.Copy(doc, fields)
	return WriteJSON(path, doc)
}
