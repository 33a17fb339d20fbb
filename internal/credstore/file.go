package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps values in a YAML map on disk, optionally sealed.
type FileStore struct {
	path   string
	sealer *Sealer

	mu     sync.Mutex
	values map[string]string
}

// OpenFile loads the YAML file at path. A missing file is an empty store;
// it is created on the first Set.
func OpenFile(path string, sealer *Sealer) (*FileStore, error) {
	f := &FileStore{path: path, sealer: sealer, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f.values); err != nil {
		return nil, fmt.Errorf("credstore: parsing %s: %w", path, err)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return f, nil
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", false, nil
	}
	if f.sealer != nil {
		plain, err := f.sealer.Open(key, v)
		if err != nil {
			return "", false, err
		}
		v = plain
	}
	return v, true, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sealer != nil {
		sealed, err := f.sealer.Seal(key, value)
		if err != nil {
			return err
		}
		value = sealed
	}
	f.values[key] = value
	return f.flush()
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flush()
}

// flush rewrites the file atomically (caller must hold mu).
func (f *FileStore) flush() error {
	data, err := yaml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("credstore: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("credstore: creating dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("credstore: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("credstore: replacing %s: %w", f.path, err)
	}
	return nil
}
