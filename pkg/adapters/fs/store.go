// Package fs implements core.Store as a single JSON document on the local
// filesystem. Several window processes may share one store: writes are
// atomic renames and read-modify-write cycles are serialized by a lock file.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/notecap/pkg/core"
)

const (
	// DefaultFile is the document holding every collection.
	DefaultFile = "notes.json"
	// DefaultSystemDir holds lock files and other bookkeeping.
	DefaultSystemDir = ".notecap"
)

// Config holds the configuration for the filesystem store.
type Config struct {
	Path         string        // directory of the store
	File         string        // e.g. "notes.json"
	SystemDir    string        // e.g. ".notecap"
	MustExist    bool          // refuse to create Path
	ReadOnly     bool          // reject Save
	LockTimeout  time.Duration // zero waits forever
	Logger       *slog.Logger
	ErrorHandler func(error) // receives watcher failures
}

// Store implements core.Store backed by one JSON file.
type Store struct {
	config Config
	file   string
	lock   *fileLock

	mu            sync.RWMutex
	pending       map[string]json.RawMessage
	watcherActive bool
	lastSave      *time.Time
	saves         int
}

// NewStore creates a filesystem store. Call Initialize before use.
func NewStore(config Config) *Store {
	if config.File == "" {
		config.File = DefaultFile
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		config:  config,
		file:    filepath.Join(config.Path, config.File),
		pending: make(map[string]json.RawMessage),
		lock: &fileLock{
			path:       filepath.Join(config.Path, config.SystemDir, "store.lock"),
			retry:      10 * time.Millisecond,
			timeout:    config.LockTimeout,
			staleAfter: 30 * time.Second,
		},
	}
}

// Initialize ensures the store directory (and system directory) exist.
func (s *Store) Initialize(ctx context.Context) error {
	if s.config.MustExist || s.config.ReadOnly {
		info, err := os.Stat(s.config.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", s.config.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", s.config.Path)
		}
		if s.config.ReadOnly {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Join(s.config.Path, s.config.SystemDir), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// Path returns the JSON document path.
func (s *Store) Path() string {
	return s.file
}

// Get returns the staged value of key when present, otherwise reads the
// document from disk so writes from other processes are always visible.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	if v, ok := s.pending[key]; ok {
		s.mu.RUnlock()
		return slices.Clone(v), true, nil
	}
	s.mu.RUnlock()

	doc, err := s.readDocument()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	return []byte(v), ok, nil
}

// Set stages value at key until the next Save.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = slices.Clone(value)
	return nil
}

// Save merges staged keys over the current document and replaces it
// atomically. Keys that were not staged keep their on-disk value.
func (s *Store) Save(ctx context.Context) error {
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	doc, err := s.readDocument()
	if err != nil {
		return err
	}
	maps.Copy(doc, s.pending)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	if err := writeFileAtomic(s.file, data, 0644); err != nil {
		return err
	}

	clear(s.pending)
	now := time.Now()
	s.lastSave = &now
	s.saves++
	s.config.Logger.Debug("store saved", "path", s.file, "bytes", len(data))
	return nil
}

// Discard drops staged keys.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
}

// Lock takes the cross-process writer lock.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if s.config.ReadOnly {
		return nil, core.ErrReadOnly
	}
	return s.lock.acquire(ctx)
}

func (s *Store) readDocument() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.file)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", s.file, err)
	}
	return doc, nil
}

var (
	_ core.Store     = (*Store)(nil)
	_ core.Locker    = (*Store)(nil)
	_ core.Discarder = (*Store)(nil)
	_ core.Watchable = (*Store)(nil)
)
