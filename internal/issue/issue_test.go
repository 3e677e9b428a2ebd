// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet_KnownIds(t *testing.T) {
	ids := []Id{
		RootNotFoundId, DeclParseErrorId, ConfigLoadFailedId, ShellNotFoundId,
		ToolsMissingId, DependencyCycleId, InstallFailedId, CacheWriteFailedId,
	}
	for _, id := range ids {
		iss := Get(id)
		if iss == nil {
			t.Fatalf("Get(%d) = nil", id)
		}
		if iss.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, iss.Id())
		}
		if iss.Title() == "" {
			t.Errorf("issue %d has no title", id)
		}
		if len(iss.Guidance()) == 0 {
			t.Errorf("issue %d has no guidance", id)
		}
		if len(iss.DocLinks()) == 0 {
			t.Errorf("issue %d has no doc links", id)
		}
	}
}

func TestGet_UnknownId(t *testing.T) {
	if got := Get(Id(9999)); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}
}

func TestValues_CoversCatalog(t *testing.T) {
	if got := len(Values()); got != len(issues) {
		t.Errorf("Values() returned %d issues, catalog has %d", got, len(issues))
	}
}

func TestRender(t *testing.T) {
	out := Get(ToolsMissingId).Render()
	if !strings.Contains(out, "Required tools are missing") {
		t.Errorf("Render() missing title: %q", out)
	}
	if !strings.Contains(out, "• Run 'fibr tools check'") {
		t.Errorf("Render() missing guidance bullet: %q", out)
	}
	if !strings.Contains(out, "See also:") || !strings.Contains(out, "https://fibr.dev/docs/tools") {
		t.Errorf("Render() missing doc links: %q", out)
	}
}

func TestAccessors_ReturnClones(t *testing.T) {
	iss := Get(ToolsMissingId)
	iss.Guidance()[0] = "mutated"
	if iss.Guidance()[0] == "mutated" {
		t.Error("Guidance() exposed internal slice")
	}
	iss.DocLinks()[0] = "mutated"
	if iss.DocLinks()[0] == "mutated" {
		t.Error("DocLinks() exposed internal slice")
	}
}
