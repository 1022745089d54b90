package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scrtlabs/secretvm-cli/internal/config"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

// FileName is the session file inside the config directory.
const FileName = "session.json"

const (
	dirPerm  = 0700
	filePerm = 0600
)

// fileFormat is the JSON document written to disk.
type fileFormat struct {
	Cookies []Cookie `json:"cookies"`
}

// Store loads, saves and clears the session file. It never returns errors:
// a session that cannot be read degrades to "logged out".
type Store struct {
	path string
	log  *logger.Logger

	mu     sync.Mutex
	cached *Session
}

// DefaultPath returns the per-user session file path.
func DefaultPath() string {
	return filepath.Join(config.Dir(), FileName)
}

// NewStore creates a store backed by path. An empty path selects DefaultPath.
func NewStore(path string, log *logger.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{path: path, log: log}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes sess to disk and makes it the cached session.
func (s *Store) Save(sess *Session) {
	if sess == nil {
		sess = New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = sess

	if err := s.write(sess); err != nil {
		s.log.Warn("could not save session", "path", s.path, "error", err)
		return
	}

	// Permissions may be ignored on filesystems without POSIX mode bits.
	if err := os.Chmod(s.path, filePerm); err != nil {
		s.log.Warn("could not restrict session file permissions", "path", s.path, "error", err)
	}
}

func (s *Store) write(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(fileFormat{Cookies: sess.All()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load returns the cached session, reading the file on first use. It returns
// nil when no usable session exists.
func (s *Store) Load() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("could not read session file", "path", s.path, "error", err)
		}
		return nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn("could not parse session file", "path", s.path, "error", err)
		return nil
	}

	s.cached = FromCookies(f.Cookies)
	return s.cached
}

// LoadOrNew returns the stored session or a fresh empty one.
func (s *Store) LoadOrNew() *Session {
	if sess := s.Load(); sess != nil {
		return sess
	}
	return New()
}

// Clear deletes the session file and drops the cache.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("could not delete session file", "path", s.path, "error", err)
	}
}
