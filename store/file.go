package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

const sessionFileName = "lfusys/session.json"

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// FileSessionStore keeps sessions in a single JSON document on disk so a
// login survives between CLI invocations.
type FileSessionStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// DefaultSessionPath resolves the session file under the XDG config home,
// creating parent directories as needed.
func DefaultSessionPath() (string, error) {
	return xdg.ConfigFile(sessionFileName)
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{
		path: path,
		now:  time.Now,
	}
}

func (s *FileSessionStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	e, ok := entries[key]
	if !ok {
		return "", nil
	}
	if !e.ExpiresAt.IsZero() && !s.now().Before(e.ExpiresAt) {
		return "", nil
	}
	return e.Value, nil
}

func (s *FileSessionStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	e := fileEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = s.now().Add(ttl).UTC()
	}
	entries[key] = e
	return s.save(entries)
}

func (s *FileSessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileSessionStore) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(b) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return entries, nil
}

func (s *FileSessionStore) save(entries map[string]fileEntry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
