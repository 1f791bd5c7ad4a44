// Package bolt implements core.Store on a bbolt database file.
//
// bbolt holds an exclusive file lock for as long as the database is open, so
// a bolt store is owned by one process; windows of that process share it.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	bbolt "go.etcd.io/bbolt"

	"github.com/aretw0/notecap/pkg/core"
)

var bucketStore = []byte("store")

// Store implements core.Store on bbolt.
type Store struct {
	db   *bbolt.DB
	path string

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string][]byte
	saves   int
}

// Open opens (or creates) the database at path.
func Open(path string, timeout time.Duration) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("bolt store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketStore)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, pending: make(map[string][]byte)}, nil
}

// Get returns the staged value when present, else the committed one.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	if v, ok := s.pending[key]; ok {
		s.mu.Unlock()
		return slices.Clone(v), true, nil
	}
	s.mu.Unlock()

	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStore)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			out = slices.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Set stages value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = slices.Clone(value)
	return nil
}

// Save commits every staged key in one transaction. bbolt fsyncs on commit.
func (s *Store) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	staged := maps.Clone(s.pending)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketStore)
		if err != nil {
			return err
		}
		for k, v := range staged {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit bolt store: %w", err)
	}
	clear(s.pending)
	s.saves++
	return nil
}

// Discard drops staged keys.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
}

// Lock serializes writers of this process.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{"path": s.path, "pending": len(s.pending), "saves": s.saves}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "bolt-store"
}

var (
	_ core.Store                   = (*Store)(nil)
	_ core.Locker                  = (*Store)(nil)
	_ core.Discarder               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
