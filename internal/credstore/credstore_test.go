package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// storeFactories builds one instance of each backend for shared tests.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := OpenFile(filepath.Join(dir, "creds.yaml"), nil)
			if err != nil {
				t.Fatalf("OpenFile() error = %v", err)
			}
			return s
		},
		"sealed file": func() Store {
			key, err := LoadOrCreateKey(filepath.Join(dir, "master.key"))
			if err != nil {
				t.Fatalf("LoadOrCreateKey() error = %v", err)
			}
			sealer, err := NewSealer(key)
			if err != nil {
				t.Fatalf("NewSealer() error = %v", err)
			}
			s, err := OpenFile(filepath.Join(dir, "sealed.yaml"), sealer)
			if err != nil {
				t.Fatalf("OpenFile() error = %v", err)
			}
			return s
		},
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(dir, "creds.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreGetSetDelete(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			if _, ok, err := s.Get(KeyPassword); err != nil || ok {
				t.Fatalf("Get() on empty store = ok %v, err %v", ok, err)
			}
			if err := s.Set(KeyPassword, "secret123"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set(KeyPassword, "secret456"); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			v, ok, err := s.Get(KeyPassword)
			if err != nil || !ok || v != "secret456" {
				t.Errorf("Get() = %q, %v, %v; want secret456, true, nil", v, ok, err)
			}
			if err := s.Delete(KeyPassword); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := s.Delete(KeyPassword); err != nil {
				t.Fatalf("Delete() of missing key error = %v", err)
			}
			if _, ok, _ := s.Get(KeyPassword); ok {
				t.Error("Get() after Delete() should report missing")
			}
		})
	}
}

func TestLoadSaveForget(t *testing.T) {
	s := NewMemoryStore()

	if _, ok, err := Load(s, "Laptop"); err != nil || ok {
		t.Fatalf("Load() on empty store = ok %v, err %v", ok, err)
	}

	if err := Save(s, Credentials{Password: "secret123", DeviceLabel: "Phone"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	creds, ok, err := Load(s, "Laptop")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if creds.Password != "secret123" || creds.DeviceLabel != "Phone" {
		t.Errorf("Load() = %+v", creds)
	}

	if err := Forget(s); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if _, ok, _ := Load(s, "Laptop"); ok {
		t.Error("Load() after Forget() should report no credentials")
	}
}

func TestLoadDefaultsLabel(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set(KeyPassword, "secret123")

	creds, ok, err := Load(s, "Laptop")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if creds.DeviceLabel != "Laptop" {
		t.Errorf("DeviceLabel = %q, want Laptop", creds.DeviceLabel)
	}
}

func TestLoadEmptyPasswordIsMissing(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set(KeyPassword, "")
	if _, ok, _ := Load(s, "x"); ok {
		t.Error("an empty stored password should count as no credentials")
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.yaml")
	s, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if err := Save(s, Credentials{Password: "pw", DeviceLabel: "Phone"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	reopened, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	creds, ok, err := Load(reopened, "")
	if err != nil || !ok || creds.Password != "pw" || creds.DeviceLabel != "Phone" {
		t.Errorf("Load() after reopen = %+v, %v, %v", creds, ok, err)
	}
}

func TestSealedFileHidesPassword(t *testing.T) {
	dir := t.TempDir()
	key, err := LoadOrCreateKey(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("LoadOrCreateKey() error = %v", err)
	}
	sealer, _ := NewSealer(key)
	path := filepath.Join(dir, "creds.yaml")
	s, err := OpenFile(path, sealer)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if err := s.Set(KeyPassword, "secret123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "secret123") {
		t.Error("sealed file should not contain the plaintext password")
	}
	if !strings.Contains(string(data), sealedPrefix) {
		t.Errorf("sealed file should contain %q, got:\n%s", sealedPrefix, data)
	}

	// The same key file reopens the store.
	key2, err := LoadOrCreateKey(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("LoadOrCreateKey() reload error = %v", err)
	}
	sealer2, _ := NewSealer(key2)
	reopened, _ := OpenFile(path, sealer2)
	if v, ok, err := reopened.Get(KeyPassword); err != nil || !ok || v != "secret123" {
		t.Errorf("Get() after reopen = %q, %v, %v", v, ok, err)
	}
}

func TestSealerRejectsWrongKeyAndSwappedName(t *testing.T) {
	k1 := make([]byte, masterKeySize)
	k2 := make([]byte, masterKeySize)
	k2[0] = 1
	s1, _ := NewSealer(k1)
	s2, _ := NewSealer(k2)

	sealed, err := s1.Seal(KeyPassword, "secret")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := s2.Open(KeyPassword, sealed); !errors.Is(err, ErrUnsealed) {
		t.Errorf("Open() with wrong key error = %v, want ErrUnsealed", err)
	}
	if _, err := s1.Open(KeyDeviceLabel, sealed); !errors.Is(err, ErrUnsealed) {
		t.Errorf("Open() under another key name error = %v, want ErrUnsealed", err)
	}
	if _, err := s1.Open(KeyPassword, "plain"); !errors.Is(err, ErrUnsealed) {
		t.Errorf("Open() of unsealed value error = %v, want ErrUnsealed", err)
	}
}

func TestNewSealerKeySize(t *testing.T) {
	if _, err := NewSealer(make([]byte, 16)); err == nil {
		t.Error("NewSealer() should reject a 16-byte key")
	}
}

func TestLoadOrCreateKeyRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateKey(path); err == nil {
		t.Error("LoadOrCreateKey() should reject a key file of the wrong size")
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		path    string
		keyFile string
		wantErr bool
	}{
		{"memory", "", "", false},
		{"file", filepath.Join(dir, "c.yaml"), filepath.Join(dir, "c.key"), false},
		{"file", filepath.Join(dir, "plain.yaml"), "", false},
		{"sqlite", filepath.Join(dir, "c.db"), "", false},
		{"keychain", "", "", true},
	}
	for _, tt := range tests {
		s, err := Open(tt.backend, tt.path, tt.keyFile)
		if (err != nil) != tt.wantErr {
			t.Errorf("Open(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			continue
		}
		if c, ok := s.(interface{ Close() error }); ok {
			c.Close()
		}
	}
}
