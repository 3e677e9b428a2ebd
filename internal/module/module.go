// SPDX-License-Identifier: MPL-2.0

// Package module defines the fiber/chain/tool records that make up the
// dependency graph, the typed identifiers that key them, and the registry the
// resolver threads through a run.
package module

import (
	"errors"
	"fmt"
	"strings"

	"fibr-cli/internal/conftree"
	"fibr-cli/internal/toolcheck"
)

// ErrInvalidID is the sentinel error wrapped by InvalidIDError.
var ErrInvalidID = errors.New("invalid module id")

type (
	// ID is the opaque identifier of a module. Fibers use their bare name
	// ("db"); chains are namespaced under their fiber with a colon
	// ("db:migrate"), nesting further for nested chains ("db:migrate:seed").
	// IDs are map keys, never sanitized shell identifiers.
	ID string

	// InvalidIDError is returned when an ID fails validation.
	InvalidIDError struct {
		Value ID
	}

	// Kind discriminates the node types of the dependency graph.
	Kind int

	// State is the lifecycle state of a module within a single run.
	// Transitions are monotonic: once a module reaches Loaded, Disabled, or
	// Failed it never returns to Pending.
	State int

	// Module is a node in the dependency graph: a fiber, a chain, or a tool
	// declaration hoisted into the graph.
	Module struct {
		// ID is the scoped identifier (see ID).
		ID ID
		// Kind is the node type.
		Kind Kind
		// Config is the effective configuration: the deep merge of built-in
		// defaults, the module's declaration file, and the user override.
		Config conftree.Tree
		// Enabled mirrors the merged "enabled" flag. A disabled module never
		// advances past StateDisabled.
		Enabled bool
		// State is the current lifecycle state.
		State State
		// Deps lists declared module dependencies by name, recorded as-is at
		// discovery; existence is validated during resolution.
		Deps []ID
		// Tools maps declared tool names to their check/install configuration.
		Tools map[string]toolcheck.Config
		// Reason records why a terminal state was reached ("disabled by user
		// override", "unresolved-dependency: cache", ...). Empty until then.
		Reason string
		// Dir is the module's directory on disk. Empty for lazily discovered
		// chains until their files are enumerated.
		Dir string
		// InitScript is an optional script path run before the rest of the
		// chain's contents when the module activates.
		InitScript string
	}
)

const (
	KindFiber Kind = iota
	KindChain
	KindTool
)

const (
	StatePending State = iota
	StateLoading
	StateLoaded
	StateDisabled
	StateFailed
)

// String returns the kind name used in status output.
func (k Kind) String() string {
	switch k {
	case KindFiber:
		return "fiber"
	case KindChain:
		return "chain"
	case KindTool:
		return "tool"
	default:
		return "unknown"
	}
}

// String returns the state name used in status output.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateDisabled:
		return "disabled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final for the run.
func (s State) Terminal() bool {
	return s == StateLoaded || s == StateDisabled || s == StateFailed
}

// String returns the string representation of the ID.
func (id ID) String() string { return string(id) }

// IsValid reports whether the ID is well-formed: non-empty, no whitespace,
// and no empty segments between colons.
func (id ID) IsValid() (bool, []error) {
	s := string(id)
	if s == "" || strings.TrimSpace(s) != s || strings.ContainsAny(s, " \t\n") {
		return false, []error{&InvalidIDError{Value: id}}
	}
	for _, seg := range strings.Split(s, ":") {
		if seg == "" {
			return false, []error{&InvalidIDError{Value: id}}
		}
	}
	return true, nil
}

// Fiber returns the owning fiber's ID. For a fiber this is the ID itself.
func (id ID) Fiber() ID {
	s := string(id)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return ID(s[:i])
	}
	return id
}

// Parent returns the enclosing module's ID, or "" for a top-level fiber.
// For "db:migrate:seed" the parent is "db:migrate".
func (id ID) Parent() ID {
	s := string(id)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return ID(s[:i])
	}
	return ""
}

// Child returns the ID of a chain named name nested under this module.
func (id ID) Child(name string) ID {
	return ID(string(id) + ":" + name)
}

// IsChain reports whether the ID names a chain (namespaced under a fiber).
func (id ID) IsChain() bool {
	return strings.ContainsRune(string(id), ':')
}

// Segments returns the colon-separated path segments of the ID.
func (id ID) Segments() []string {
	return strings.Split(string(id), ":")
}

// Error implements the error interface for InvalidIDError.
func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid module id %q: must be non-empty, colon-separated segments without whitespace", e.Value)
}

// Unwrap returns ErrInvalidID for errors.Is() compatibility.
func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }
