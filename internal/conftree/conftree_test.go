// SPDX-License-Identifier: MPL-2.0

package conftree

import (
	"reflect"
	"testing"
)

func TestGet(t *testing.T) {
	t.Parallel()
	tree := Tree{
		"a": Tree{
			"b": Tree{"c": 42},
			"s": "hello",
		},
		"top": true,
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"a.b.c", 42, true},
		{"a.s", "hello", true},
		{"top", true, true},
		{"a.b.missing", nil, false},
		{"a.s.c", nil, false}, // descending through a scalar
		{"", nil, false},
	}
	for _, tt := range tests {
		got, ok := Get(tree, tt.path)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("Get(%q) = (%v, %v), want (%v, %v)", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGetBool(t *testing.T) {
	t.Parallel()
	tree := Tree{"enabled": false, "name": "x"}

	if GetBool(tree, "enabled", true) != false {
		t.Error("expected explicit false to win over fallback")
	}
	if GetBool(tree, "missing", true) != true {
		t.Error("expected fallback for missing path")
	}
	if GetBool(tree, "name", true) != true {
		t.Error("expected fallback for non-bool value")
	}
}

func TestGetStringSlice(t *testing.T) {
	t.Parallel()
	tree := Tree{"deps": []any{"core", "db", 7}}

	got := GetStringSlice(tree, "deps")
	want := []string{"core", "db"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()
	orig := Tree{"a": Tree{"x": 1}, "seq": []any{Tree{"k": "v"}}}
	cp := Clone(orig)

	cp["a"].(Tree)["x"] = 2
	cp["seq"].([]any)[0].(Tree)["k"] = "changed"

	if orig["a"].(Tree)["x"] != 1 {
		t.Error("nested map shared between clone and original")
	}
	if orig["seq"].([]any)[0].(Tree)["k"] != "v" {
		t.Error("sequence element shared between clone and original")
	}
}

func TestSubtree(t *testing.T) {
	t.Parallel()
	tree := Tree{"mod": Tree{"cfg": Tree{"k": "v"}}, "scalar": 1}

	if got := Subtree(tree, "mod.cfg"); got == nil || got["k"] != "v" {
		t.Errorf("expected subtree with k=v, got %v", got)
	}
	if got := Subtree(tree, "scalar"); got != nil {
		t.Errorf("expected nil for scalar path, got %v", got)
	}
	if got := Subtree(tree, "missing"); got != nil {
		t.Errorf("expected nil for missing path, got %v", got)
	}
}
