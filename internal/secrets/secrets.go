// Package secrets stores named secrets (API client secrets, the rotating
// Slack refresh token) in an age-encrypted JSON file. Reads decrypt the
// whole bundle; writes re-encrypt and replace the file atomically.
package secrets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
)

// Store is the secret access interface the rest of the app depends on.
type Store interface {
	Get(name string) (string, error)
	Put(name, value string) error
}

// FileStore keeps the bundle in a single age-encrypted file. Safe for
// concurrent use within one process; there is no cross-process locking.
type FileStore struct {
	path     string
	identity *age.X25519Identity

	mu sync.Mutex
}

// Open parses the private key (AGE-SECRET-KEY-1... format) and returns a
// store over the given file. The file may not exist yet; it is created on
// first Put.
func Open(path, privateKey string) (*FileStore, error) {
	identity, err := age.ParseX25519Identity(privateKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: parsing private key: %w", err)
	}
	return &FileStore{path: path, identity: identity}, nil
}

func (s *FileStore) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := bundle[name]
	if !ok {
		return "", fmt.Errorf("secrets: %q not found", name)
	}
	return v, nil
}

func (s *FileStore) Put(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, err := s.load()
	if err != nil {
		return err
	}
	bundle[name] = value
	return s.save(bundle)
}

func (s *FileStore) load() (map[string]string, error) {
	ciphertext, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: reading %s: %w", s.path, err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("secrets: decrypting %s: %w", s.path, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("secrets: decrypting %s: %w", s.path, err)
	}

	bundle := map[string]string{}
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return nil, fmt.Errorf("secrets: parsing bundle: %w", err)
	}
	return bundle, nil
}

func (s *FileStore) save(bundle map[string]string) error {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("secrets: encoding bundle: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("secrets: encrypting bundle: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("secrets: encrypting bundle: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("secrets: encrypting bundle: %w", err)
	}

	// Write-then-rename so a crash mid-write never loses the old bundle.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("secrets: creating dir: %w", err)
	}
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("secrets: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

// Memory is an in-process store for tests and one-shot CLI runs.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory(values map[string]string) *Memory {
	if values == nil {
		values = map[string]string{}
	}
	return &Memory{values: values}
}

func (m *Memory) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return "", fmt.Errorf("secrets: %q not found", name)
	}
	return v, nil
}

func (m *Memory) Put(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}
