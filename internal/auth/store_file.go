package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one JSON file per session, readable only by the owner.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir. Relative directories live
// under the user's home.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{Dir: abs}, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.Dir, name+".json")
}

func (f *FileStore) Load(name string) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	return &s, nil
}

// Save writes the session to a temporary file and renames it over the old
// one, so readers never observe a partial session.
func (f *FileStore) Save(s *Session) error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.Dir, "."+s.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(s.Name)); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(f.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

func (f *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(sessions)
	return sessions, nil
}
