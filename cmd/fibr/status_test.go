// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"
	"testing"

	"fibr-cli/internal/module"
	"fibr-cli/internal/resolver"
)

func TestRenderStatusTable(t *testing.T) {
	rep := &resolver.Report{
		Modules: []resolver.ModuleStatus{
			{ID: "core", Kind: module.KindFiber, State: module.StateLoaded},
			{ID: "db", Kind: module.KindFiber, State: module.StateDisabled, Reason: "disabled by configuration"},
			{ID: "db:migrate", Kind: module.KindChain, State: module.StateFailed, Reason: "unresolved-dependency: db"},
		},
	}

	out := renderStatusTable(rep)
	for _, want := range []string{"MODULE", "core", "db:migrate", "loaded", "disabled", "failed", "unresolved-dependency: db"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestExitForReport(t *testing.T) {
	clean := &resolver.Report{Modules: []resolver.ModuleStatus{
		{ID: "core", State: module.StateLoaded},
		{ID: "db", State: module.StateDisabled},
	}}
	if err := exitForReport(clean); err != nil {
		t.Errorf("exitForReport with no failures = %v", err)
	}

	failed := &resolver.Report{Modules: []resolver.ModuleStatus{
		{ID: "core", State: module.StateLoaded},
		{ID: "db", State: module.StateFailed, Reason: "unresolved-dependency: psql"},
	}}
	err := exitForReport(failed)
	if err == nil {
		t.Fatal("exitForReport with a failure should return an ExitError")
	}
	exitErr, ok := err.(*ExitError)
	if !ok || exitErr.Code != 1 {
		t.Errorf("exitForReport = %v, want ExitError{Code: 1}", err)
	}
}

func TestAnyBrokenDeclaration(t *testing.T) {
	clean := module.NewRegistry()
	if err := clean.Register(&module.Module{ID: "core", Kind: module.KindFiber, State: module.StatePending}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if anyBrokenDeclaration(clean) {
		t.Error("registry without failed modules reported a broken declaration")
	}

	broken := module.NewRegistry()
	if err := broken.Register(&module.Module{
		ID: "db", Kind: module.KindFiber, State: module.StateFailed,
		Reason: "read module declaration: yaml: line 3: mapping values are not allowed",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !anyBrokenDeclaration(broken) {
		t.Error("registry with a parse-failed module not reported")
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"one line", "one line"},
		{"\n\n  padded  \nrest", "padded"},
		{"first\nsecond", "first"},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("/modules/db/chains/it's"); got != `'/modules/db/chains/it'\''s'` {
		t.Errorf("shellQuote = %q", got)
	}
}
