// files.go - Path-addressed byte storage on the local filesystem

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when nothing is stored under a path or id.
var ErrNotFound = errors.New("not found")

// ErrInvalidPath is returned for paths that would leave the store root.
var ErrInvalidPath = errors.New("invalid storage path")

// Store saves and loads bytes by slash-separated relative path.
type Store interface {
	Save(path string, data []byte) error
	Load(path string) ([]byte, error)
}

// LocalStore keeps files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the directory the store writes to.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes data to path, creating parent directories.
func (s *LocalStore) Save(path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads the bytes stored at path.
func (s *LocalStore) Load(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	if path == "" || strings.Contains(path, "\\") || !fs.ValidPath(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}
