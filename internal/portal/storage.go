// Package portal implements the exam-taking client core: session state,
// route authorization, the attempt countdown, answer capture and the
// submission flow. All state lives in explicit, injected objects so the
// pieces are testable without a server or a running clock.
package portal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Storage persists keyed string entries across client restarts within one
// session. Implementations must tolerate missing keys by returning ok=false.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// MemoryStorage is a map-backed Storage, used in tests and as a fallback
// when no session directory is available.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// FileStorage persists entries as a single JSON file. A read error or
// malformed file yields an empty entry set rather than a failure.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a FileStorage rooted at path. The file is created
// lazily on first Set.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load()
	v, ok := entries[key]
	return v, ok
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load()
	entries[key] = value

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStorage) load() map[string]string {
	entries := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return make(map[string]string)
	}
	return entries
}
