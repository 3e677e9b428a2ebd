// SPDX-License-Identifier: MPL-2.0

// Package conftree provides the nested configuration tree type shared by
// module declarations and user overrides, plus the layered merge engine that
// combines them by precedence.
package conftree

import (
	"strings"
)

// Tree is an arbitrarily nested configuration structure: maps of string keys
// to scalars, ordered sequences ([]any), or further Trees. It is the universal
// carrier for both module declarations and user overrides.
type Tree = map[string]any

// Clone returns a deep copy of the tree. Sequences and nested maps are copied
// recursively; scalars are copied by value.
func Clone(t Tree) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Tree:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Get resolves a dotted path (e.g., "a.b.c") against the tree. The second
// return value reports whether every segment of the path was present.
func Get(t Tree, path string) (any, bool) {
	if t == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	current := any(t)
	for _, seg := range segments {
		node, ok := current.(Tree)
		if !ok {
			return nil, false
		}
		current, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetBool resolves a dotted path to a boolean, returning fallback when the
// path is absent or the value is not a bool.
func GetBool(t Tree, path string, fallback bool) bool {
	v, ok := Get(t, path)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// GetString resolves a dotted path to a string, returning "" when the path is
// absent or the value is not a string.
func GetString(t Tree, path string) string {
	v, ok := Get(t, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetStringSlice resolves a dotted path to a slice of strings. Sequence
// elements that are not strings are skipped.
func GetStringSlice(t Tree, path string) []string {
	v, ok := Get(t, path)
	if !ok {
		return nil
	}
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range seq {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Subtree resolves a dotted path to a nested Tree, returning nil when the
// path is absent or the value is not a map.
func Subtree(t Tree, path string) Tree {
	v, ok := Get(t, path)
	if !ok {
		return nil
	}
	sub, _ := v.(Tree)
	return sub
}
