// Package credstore persists the gate password and device label.
package credstore

import (
	"fmt"
	"sync"
)

// Keys used for the stored credentials.
const (
	KeyPassword    = "password"
	KeyDeviceLabel = "device_label"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Credentials is the shared secret and the label this device presents.
type Credentials struct {
	Password    string
	DeviceLabel string
}

// Load reads stored credentials. ok is false when no password is stored.
// A missing label falls back to defaultLabel.
func Load(s Store, defaultLabel string) (creds Credentials, ok bool, err error) {
	password, ok, err := s.Get(KeyPassword)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("credstore: get password: %w", err)
	}
	if !ok || password == "" {
		return Credentials{}, false, nil
	}
	label, found, err := s.Get(KeyDeviceLabel)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("credstore: get device label: %w", err)
	}
	if !found || label == "" {
		label = defaultLabel
	}
	return Credentials{Password: password, DeviceLabel: label}, true, nil
}

// Save writes both credential fields.
func Save(s Store, c Credentials) error {
	if err := s.Set(KeyPassword, c.Password); err != nil {
		return fmt.Errorf("credstore: set password: %w", err)
	}
	if err := s.Set(KeyDeviceLabel, c.DeviceLabel); err != nil {
		return fmt.Errorf("credstore: set device label: %w", err)
	}
	return nil
}

// Forget deletes both credential fields.
func Forget(s Store) error {
	if err := s.Delete(KeyPassword); err != nil {
		return fmt.Errorf("credstore: delete password: %w", err)
	}
	if err := s.Delete(KeyDeviceLabel); err != nil {
		return fmt.Errorf("credstore: delete device label: %w", err)
	}
	return nil
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Open returns the store for backend: "memory", "file" or "sqlite".
// keyFile seals file-backend values at rest; empty stores them in plain text.
func Open(backend, path, keyFile string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		var sealer *Sealer
		if keyFile != "" {
			key, err := LoadOrCreateKey(keyFile)
			if err != nil {
				return nil, err
			}
			if sealer, err = NewSealer(key); err != nil {
				return nil, err
			}
		}
		return OpenFile(path, sealer)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", backend)
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
