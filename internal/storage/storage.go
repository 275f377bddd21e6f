// Package storage provides file-based JSON storage with atomic writes and
// advisory locking, used for session-scoped state such as approval caches.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("not found")

// Store persists JSON documents under a base directory, one file per key.
// Writes go through a temp file and rename so readers never observe a
// partial document, and an advisory flock guards against concurrent
// processes writing the same key.
type Store struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*fileLock
}

// New creates a store rooted at basePath.
func New(basePath string) *Store {
	return &Store{
		basePath: basePath,
		locks:    make(map[string]*fileLock),
	}
}

// Path returns the file a key is stored at.
func (s *Store) Path(key string) string {
	return filepath.Join(s.basePath, key+".json")
}

// Get reads the document for key into v. Returns ErrNotFound when the key
// has never been written.
func (s *Store) Get(key string, v any) error {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// Put writes the document for key atomically.
func (s *Store) Put(key string, v any) error {
	path := s.Path(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	lock := s.lockFor(path)
	if err := lock.acquire(); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer lock.release()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Delete removes the document for key. Deleting an absent key is not an
// error.
func (s *Store) Delete(key string) error {
	path := s.Path(key)

	lock := s.lockFor(path)
	if err := lock.acquire(); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer lock.release()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns all stored keys.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

// Exists reports whether a key has been written.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

func (s *Store) lockFor(path string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[path]
	if !ok {
		lock = &fileLock{path: path}
		s.locks[path] = lock
	}
	return lock
}
