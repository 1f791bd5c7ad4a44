// Package memory provides an in-process core.Store for tests and ephemeral
// sessions. Nothing survives the process.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notecap/pkg/core"
)

// Store implements core.Store, core.Locker and core.Discarder in memory.
type Store struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	data    map[string][]byte
	pending map[string][]byte
	saves   int

	// FailSave, when set, is returned by Save instead of flushing.
	FailSave error
	// FailGet, when set, is returned by Get.
	FailGet error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data:    make(map[string][]byte),
		pending: make(map[string][]byte),
	}
}

// Get returns the staged value when present, else the flushed one.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet != nil {
		return nil, false, s.FailGet
	}
	if v, ok := s.pending[key]; ok {
		return slices.Clone(v), true, nil
	}
	v, ok := s.data[key]
	return slices.Clone(v), ok, nil
}

// Set stages value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = slices.Clone(value)
	return nil
}

// Save moves staged values into the flushed map.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	maps.Copy(s.data, s.pending)
	clear(s.pending)
	s.saves++
	return nil
}

// Discard drops staged values.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
}

// Lock serializes writers sharing this store.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock, nil
}

// Saves reports how many flushes succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Raw returns the flushed value of key, bypassing staged writes.
func (s *Store) Raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data[key])
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{"keys": len(s.data), "pending": len(s.pending), "saves": s.saves}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

var (
	_ core.Store                   = (*Store)(nil)
	_ core.Locker                  = (*Store)(nil)
	_ core.Discarder               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
