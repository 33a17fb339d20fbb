package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	sealedPrefix  = "sealed:v1:"
	hkdfInfo      = "gatekeeper credential store v1"
)

// ErrUnsealed is returned when a sealed value fails authentication.
var ErrUnsealed = errors.New("credstore: cannot unseal value")

// Sealer encrypts stored values with XChaCha20-Poly1305 under a key
// derived from a local master key.
type Sealer struct {
	key []byte
}

// NewSealer derives the value key from a 32-byte master key with
// HKDF-SHA256.
func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("credstore: master key must be %d bytes, got %d", masterKeySize, len(masterKey))
	}
	r := hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("credstore: derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal returns "sealed:v1:" + base64(nonce || ciphertext). The key name is
// bound as associated data so values cannot be swapped between keys.
func (s *Sealer) Seal(name, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("credstore: create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("credstore: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(name))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(name, value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return "", fmt.Errorf("%w: %s is not sealed", ErrUnsealed, name)
	}
	raw, err := base64.StdEncoding.DecodeString(value[len(sealedPrefix):])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealed, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("credstore: create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: value too short", ErrUnsealed)
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealed, err)
	}
	return string(plain), nil
}

// LoadOrCreateKey reads the master key at path, generating a random one
// (mode 0600) if the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != masterKeySize {
			return nil, fmt.Errorf("credstore: key file %s must hold %d bytes, got %d", path, masterKeySize, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credstore: read key file: %w", err)
	}

	key := make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("credstore: generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("credstore: create key dir: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("credstore: write key file: %w", err)
	}
	return key, nil
}
