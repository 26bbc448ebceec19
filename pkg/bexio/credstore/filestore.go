// Package credstore persists the client credential to durable local storage.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

// FileStore keeps the credential as a single JSON file on disk.
// It satisfies bexio.CredentialStore.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed credential store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the conventional credential location under the user's
// home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tictac/credential.json"
	}
	return filepath.Join(home, ".tictac", "credential.json")
}

// Load retrieves the stored credential.
func (s *FileStore) Load() (*bexio.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, bexio.ErrNoCredential
		}
		return nil, fmt.Errorf("credstore: read failed: %w", err)
	}

	var cred bexio.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("credstore: decode failed: %w", err)
	}
	return &cred, nil
}

// Save persists the credential with owner-only permissions.
func (s *FileStore) Save(cred *bexio.Credential) error {
	if cred == nil {
		return fmt.Errorf("credstore: credential is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credstore: create dir failed: %w", err)
	}

	raw, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: encode failed: %w", err)
	}

	// Write to a temp file first so a crash cannot leave a torn credential.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("credstore: write failed: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("credstore: rename failed: %w", err)
	}
	return nil
}

// Clear removes the stored credential.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credstore: remove failed: %w", err)
	}
	return nil
}

// MemoryStore keeps the credential in memory. Suitable for tests.
type MemoryStore struct {
	mu   sync.Mutex
	cred *bexio.Credential
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load retrieves the stored credential.
func (s *MemoryStore) Load() (*bexio.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, bexio.ErrNoCredential
	}
	copy := *s.cred
	return &copy, nil
}

// Save persists the credential.
func (s *MemoryStore) Save(cred *bexio.Credential) error {
	if cred == nil {
		return fmt.Errorf("credstore: credential is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *cred
	s.cred = &copy
	return nil
}

// Clear removes the stored credential.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
