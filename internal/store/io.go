package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const recordFileMode os.FileMode = 0o600

// loadRecords reads the keyed record map at path. A missing file is an empty map.
func loadRecords[T any](path string) (map[string]T, error) {
	m := map[string]T{}
	b, err := readFile(path)
	if err != nil || b == nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// saveRecords replaces the record map at path.
func saveRecords[T any](path string, m map[string]T) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, b)
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("store: read %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// writeFile syncs b to a sibling temp file and renames it over path, so a
// crash leaves either the old or the new record set. The parent directory is
// created on first use.
func writeFile(path string, b []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
			err = fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
		}
	}()

	if err = f.Chmod(recordFileMode); err == nil {
		if _, err = f.Write(b); err == nil {
			err = f.Sync()
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
