package core

import (
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	StoreType string     `json:"store_type"`
	ReadOnly  bool       `json:"read_only"`
	Writes    int        `json:"writes"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	storeType := "unknown"
	if r.store != nil {
		storeType = "store"
		if comp, ok := r.store.(introspection.Component); ok {
			storeType = comp.ComponentType()
		}
	}

	return RepositoryState{
		StoreType: storeType,
		ReadOnly:  r.readOnly,
		Writes:    r.writes,
		LastSync:  r.lastSync,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
