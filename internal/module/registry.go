// SPDX-License-Identifier: MPL-2.0

package module

import (
	"fmt"
	"sync"

	"fibr-cli/internal/toolcheck"
)

// Registry is the in-memory module graph for a run: an ID-keyed map of module
// records plus the insertion-ordered work-list the resolver iterates. It
// replaces any notion of name-derived ambient lookups; the registry is passed
// explicitly to whoever needs it.
//
// The registry may grow during resolution: nested chains become discoverable
// only once their owning chain has loaded. Registration is idempotent per ID.
type Registry struct {
	mu      sync.RWMutex
	modules map[ID]*Module
	// order tracks IDs in first-registration order for deterministic passes.
	order []ID
}

// DuplicateError is returned when two modules register under the same ID
// within a scope.
type DuplicateError struct {
	ID ID
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate module id %q: fiber and chain names must be unique within their scope", e.ID)
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[ID]*Module)}
}

// Register adds a module. Registering an already-present ID returns
// DuplicateError and leaves the existing record untouched.
func (r *Registry) Register(m *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.ID]; exists {
		return &DuplicateError{ID: m.ID}
	}
	r.modules[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

// Get returns the module for id, or nil if unknown.
func (r *Registry) Get(id ID) *Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[id]
}

// All returns the registered modules in first-registration order. The slice
// is a fresh copy; the *Module pointers are shared.
func (r *Registry) All() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SetState transitions a module's state, enforcing monotonicity: a terminal
// state is never overwritten. It reports whether the transition was applied.
func (r *Registry) SetState(id ID, state State, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok || m.State.Terminal() {
		return false
	}
	m.State = state
	if reason != "" {
		m.Reason = reason
	}
	return true
}

// ToolConfigs collects the tool declarations of every registered module,
// keyed by tool name. The first declaration of a name wins; later modules
// redeclaring the same tool do not overwrite it.
func (r *Registry) ToolConfigs() map[string]toolcheck.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]toolcheck.Config)
	for _, id := range r.order {
		for name, cfg := range r.modules[id].Tools {
			if _, seen := out[name]; !seen {
				out[name] = cfg
			}
		}
	}
	return out
}
