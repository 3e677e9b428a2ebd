// SPDX-License-Identifier: MPL-2.0

package conftree

import "reflect"

// Options controls merge behavior for sequence values.
type Options struct {
	// OverwriteArrays makes a higher layer's sequence replace the lower
	// layer's wholesale. When false (the default), sequences are merged as a
	// union that preserves lower-layer order and deduplicates repeated
	// elements.
	OverwriteArrays bool
}

// Merge combines configuration layers ordered lowest to highest precedence
// into a single tree. Maps merge key-by-key recursively; sequences merge per
// Options; on scalar conflicts or type mismatches (e.g., a map over a scalar)
// the higher layer fully replaces the lower subtree.
//
// Merge is pure: input layers are never mutated, and the result shares no
// structure with them. It is idempotent — merging a tree over itself yields
// an equal tree.
func Merge(layers []Tree, opts Options) Tree {
	result := Tree{}
	for _, layer := range layers {
		result = mergeTrees(result, layer, opts)
	}
	return result
}

func mergeTrees(lower, higher Tree, opts Options) Tree {
	out := Clone(lower)
	if out == nil {
		out = Tree{}
	}
	for key, hv := range higher {
		lv, exists := out[key]
		if !exists {
			out[key] = cloneValue(hv)
			continue
		}
		out[key] = mergeValues(lv, hv, opts)
	}
	return out
}

func mergeValues(lower, higher any, opts Options) any {
	switch hv := higher.(type) {
	case Tree:
		if lv, ok := lower.(Tree); ok {
			return mergeTrees(lv, hv, opts)
		}
		// Type mismatch: higher subtree wins.
		return cloneValue(hv)
	case []any:
		lv, ok := lower.([]any)
		if !ok || opts.OverwriteArrays {
			return cloneValue(hv)
		}
		return unionSequences(lv, hv)
	default:
		return hv
	}
}

// unionSequences appends higher elements not already present in lower,
// preserving lower-layer order. Equality is deep so that nested maps and
// sequences deduplicate correctly.
func unionSequences(lower, higher []any) []any {
	out := make([]any, 0, len(lower)+len(higher))
	for _, item := range lower {
		out = append(out, cloneValue(item))
	}
	for _, item := range higher {
		if !containsDeep(out, item) {
			out = append(out, cloneValue(item))
		}
	}
	return out
}

func containsDeep(seq []any, item any) bool {
	for _, existing := range seq {
		if reflect.DeepEqual(existing, item) {
			return true
		}
	}
	return false
}
