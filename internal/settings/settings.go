// Package settings provides the file-backed key/value store that holds small
// pieces of state outside the relational cache, such as the flattened field
// type map written by a metadata refresh.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mesh-intelligence/fieldsurvey/internal/jsonl"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// DirName is the settings directory inside the data directory.
const DirName = "settings"

// FileStore keeps one file per key under a directory. Writes are atomic.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// Open creates dir if needed and returns a store rooted there.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

// Save stores data under key, replacing any previous value.
func (s *FileStore) Save(key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := jsonl.WriteFile(path, data); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// Load returns the data saved under key. Returns ErrNotFound if the key was
// never saved.
func (s *FileStore) Load(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("setting %s: %w", key, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load setting %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".tmp-") {
		return "", fmt.Errorf("%w: setting key %q", types.ErrInvalidArgument, key)
	}
	return filepath.Join(s.dir, key), nil
}

var _ types.SettingsStore = (*FileStore)(nil)
