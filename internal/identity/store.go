// Package identity keeps the anonymous device identity used to sign in.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrCorruptIdentity = errors.New("identity file does not contain a UUID")

// Store persists one UUID per device in a file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// LoadOrCreate returns the stored identity, generating and saving a new one
// on first use.
func (s *Store) LoadOrCreate() (uuid.UUID, error) {
	id, err := s.Load()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return uuid.Nil, err
	}

	id = uuid.New()
	if err := s.save(id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) Load() (uuid.UUID, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("reading identity: %w", err)
	}
	id, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrCorruptIdentity, s.path)
	}
	return id, nil
}

// Forget removes the stored identity. A missing file is not an error.
func (s *Store) Forget() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing identity: %w", err)
	}
	return nil
}

func (s *Store) save(id uuid.UUID) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating identity dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(id.String()+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	return nil
}
