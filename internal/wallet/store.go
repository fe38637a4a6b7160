package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/siwf/internal/fileutil"
)

const (
	connectionFileName  = "connection.json"
	connectionFilePerms = 0o600
	connectionDirPerms  = 0o700
)

// Store persists the connection record between CLI invocations.
type Store interface {
	Load() (Handle, error)
	Save(h Handle) error
}

// FileStore keeps the connection record as JSON in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the connection file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, connectionFileName)
}

// Load reads the stored handle. A missing file yields a disconnected handle.
func (s *FileStore) Load() (Handle, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return Handle{}, nil
	}
	if err != nil {
		return Handle{}, fmt.Errorf("reading connection file: %w", err)
	}

	var h Handle
	if err := json.Unmarshal(data, &h); err != nil {
		return Handle{}, fmt.Errorf("parsing connection file: %w", err)
	}
	return h, nil
}

// Save writes the handle atomically.
func (s *FileStore) Save(h Handle) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding connection file: %w", err)
	}
	return fileutil.WriteAtomic(s.Path(), data, connectionFilePerms, connectionDirPerms)
}

// Persist saves every change of state into store. Save errors go to onErr.
func Persist(state *State, store Store, onErr func(error)) func() {
	return state.Subscribe(func(_, next Handle) {
		if err := store.Save(next); err != nil && onErr != nil {
			onErr(err)
		}
	})
}
