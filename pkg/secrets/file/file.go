// Package file provides a secrets.Store backed by a YAML file readable only
// by its owner. Writes go to a temporary file that is renamed into place.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/secrets"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// document is the on-disk layout.
type document struct {
	Secrets map[string]string `yaml:"secrets"`
}

// Store is a file-backed secrets.Store. It is safe for concurrent use
// within one process.
type Store struct {
	mu   sync.Mutex
	path string
}

// Ensure Store implements secrets.Store at compile time.
var _ secrets.Store = (*Store)(nil)

// New returns a store at path. The parent directory is created if needed.
// The file itself is created on the first write.
func New(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}
	return &Store{path: path}, nil
}

// DefaultPath returns the per-user secrets file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, "chatbridge", "secrets.yaml"), nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for key or secrets.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := doc.Secrets[key]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return v, nil
}

// Store saves value under key.
func (s *Store) Store(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Secrets[key] = value
	return s.save(doc)
}

// Delete removes key. The file is rewritten only when the key existed.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Secrets[key]; !ok {
		return nil
	}
	delete(doc.Secrets, key)
	return s.save(doc)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) load() (*document, error) {
	doc := &document{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading secrets file: %w", err)
	default:
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parsing secrets file %s: %w", s.path, err)
		}
	}
	if doc.Secrets == nil {
		doc.Secrets = make(map[string]string)
	}
	return doc, nil
}

func (s *Store) save(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".secrets-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing secrets: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing secrets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing secrets file: %w", err)
	}

	debug.Log("secrets", "secrets file written", "path", s.path, "keys", len(doc.Secrets))
	return nil
}
