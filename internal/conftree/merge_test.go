// SPDX-License-Identifier: MPL-2.0

package conftree

import (
	"reflect"
	"testing"
)

func TestMerge_Empty(t *testing.T) {
	t.Parallel()
	got := Merge(nil, Options{})
	if len(got) != 0 {
		t.Errorf("expected empty tree, got %v", got)
	}
}

func TestMerge_HigherLayerWinsOnScalarConflict(t *testing.T) {
	t.Parallel()
	low := Tree{"a": 1, "b": "keep"}
	high := Tree{"a": 2}

	got := Merge([]Tree{low, high}, Options{})
	if got["a"] != 2 {
		t.Errorf("expected a=2, got %v", got["a"])
	}
	if got["b"] != "keep" {
		t.Errorf("expected b preserved from lower layer, got %v", got["b"])
	}
}

func TestMerge_MapsMergeRecursively(t *testing.T) {
	t.Parallel()
	// Scenario: defaults < module file < user override.
	defaults := Tree{"a": Tree{"x": 1, "y": 2}}
	moduleFile := Tree{"a": Tree{"y": 3, "z": 4}}
	override := Tree{"a": Tree{"z": 5}}

	got := Merge([]Tree{defaults, moduleFile, override}, Options{})
	want := Tree{"a": Tree{"x": 1, "y": 3, "z": 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMerge_TypeMismatchReplacesSubtree(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		low  Tree
		high Tree
		want any
	}{
		{
			name: "map over scalar",
			low:  Tree{"a": "scalar"},
			high: Tree{"a": Tree{"nested": true}},
			want: Tree{"nested": true},
		},
		{
			name: "scalar over map",
			low:  Tree{"a": Tree{"nested": true}},
			high: Tree{"a": "scalar"},
			want: "scalar",
		},
		{
			name: "sequence over map",
			low:  Tree{"a": Tree{"nested": true}},
			high: Tree{"a": []any{"x"}},
			want: []any{"x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Merge([]Tree{tt.low, tt.high}, Options{})
			if !reflect.DeepEqual(got["a"], tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got["a"])
			}
		})
	}
}

func TestMerge_SequenceUnionDeduplicates(t *testing.T) {
	t.Parallel()
	low := Tree{"deps": []any{"core", "db"}}
	high := Tree{"deps": []any{"db", "cache"}}

	got := Merge([]Tree{low, high}, Options{})
	want := []any{"core", "db", "cache"}
	if !reflect.DeepEqual(got["deps"], want) {
		t.Errorf("expected %v, got %v", want, got["deps"])
	}
}

func TestMerge_SequenceOverwriteOption(t *testing.T) {
	t.Parallel()
	low := Tree{"deps": []any{"core", "db"}}
	high := Tree{"deps": []any{"cache"}}

	got := Merge([]Tree{low, high}, Options{OverwriteArrays: true})
	want := []any{"cache"}
	if !reflect.DeepEqual(got["deps"], want) {
		t.Errorf("expected %v, got %v", want, got["deps"])
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()
	tree := Tree{
		"a": Tree{"x": 1, "seq": []any{"one", Tree{"k": "v"}}},
		"b": "scalar",
	}

	once := Merge([]Tree{tree}, Options{})
	twice := Merge([]Tree{once, once}, Options{})
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\n once: %v\ntwice: %v", once, twice)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()
	low := Tree{"a": Tree{"x": 1}, "seq": []any{"one"}}
	high := Tree{"a": Tree{"y": 2}, "seq": []any{"two"}}
	lowCopy := Clone(low)
	highCopy := Clone(high)

	got := Merge([]Tree{low, high}, Options{})
	got["a"].(Tree)["x"] = 99

	if !reflect.DeepEqual(low, lowCopy) {
		t.Errorf("lower layer mutated: %v", low)
	}
	if !reflect.DeepEqual(high, highCopy) {
		t.Errorf("higher layer mutated: %v", high)
	}
}
