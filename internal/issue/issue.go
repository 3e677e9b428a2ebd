// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RootNotFoundId Id = iota + 1
	DeclParseErrorId
	ConfigLoadFailedId
	ShellNotFoundId
	ToolsMissingId
	DependencyCycleId
	InstallFailedId
	CacheWriteFailedId
)

type HttpLink string

// Issue pairs a failure class with guidance the CLI prints alongside the
// error. Every issue carries at least one doc link.
type Issue struct {
	id       Id
	title    string
	guidance []string
	docLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Title() string {
	return i.title
}

func (i *Issue) Guidance() []string {
	return slices.Clone(i.guidance)
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render produces the user-facing text block: title, guidance bullets, then
// doc links.
func (i *Issue) Render() string {
	var b strings.Builder
	b.WriteString(i.title)
	for _, g := range i.guidance {
		b.WriteString("\n  • ")
		b.WriteString(g)
	}
	if len(i.docLinks) > 0 {
		b.WriteString("\n\nSee also:")
		for _, link := range i.docLinks {
			b.WriteString("\n  ")
			b.WriteString(string(link))
		}
	}
	return b.String()
}

var (
	rootNotFoundIssue = &Issue{
		id:    RootNotFoundId,
		title: "Module root not found",
		guidance: []string{
			"Check the 'root' setting in your config file, or pass --root explicitly",
			"Each fiber lives in its own directory under the root, with a fibr.yaml inside",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/layout"},
	}

	declParseErrorIssue = &Issue{
		id:    DeclParseErrorId,
		title: "Failed to parse a module declaration",
		guidance: []string{
			"fibr.yaml must be valid YAML; check indentation and quoting",
			"A tool may declare only one check method (check_command, check_path, check_eval, check_brew, check_brew_cask)",
			"expected_version requires version_command",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/declarations"},
	}

	configLoadFailedIssue = &Issue{
		id:    ConfigLoadFailedId,
		title: "Failed to load configuration",
		guidance: []string{
			"Check the config file syntax, or remove it to fall back to defaults",
			"Run 'fibr config show' to see the effective configuration",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/config"},
	}

	shellNotFoundIssue = &Issue{
		id:    ShellNotFoundId,
		title: "Shell not found",
		guidance: []string{
			"Tool checks and init scripts need a POSIX shell on PATH",
			"Set 'shell' in your config file to point at an installed shell",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/config#shell"},
	}

	toolsMissingIssue = &Issue{
		id:    ToolsMissingId,
		title: "Required tools are missing",
		guidance: []string{
			"Run 'fibr tools check' to see each tool's status",
			"Install the missing tools, or run 'fibr load --install' to let declared install methods acquire them",
			"Mark a tool optional in fibr.yaml if the module can work without it",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/tools"},
	}

	dependencyCycleIssue = &Issue{
		id:    DependencyCycleId,
		title: "Modules depend on each other in a cycle",
		guidance: []string{
			"Review the 'deps' lists of the modules named in the error",
			"Break the cycle by removing one edge or extracting the shared part into its own fiber",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/dependencies"},
	}

	installFailedIssue = &Issue{
		id:    InstallFailedId,
		title: "Tool install failed",
		guidance: []string{
			"Rerun with --verbose to see the installer output",
			"Install the tool manually and rerun 'fibr load'",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/tools#install"},
	}

	cacheWriteFailedIssue = &Issue{
		id:    CacheWriteFailedId,
		title: "Could not write the tool status cache",
		guidance: []string{
			"Check permissions on your user cache directory",
			"fibr still works without the cache; checks just rerun every time",
		},
		docLinks: []HttpLink{"https://fibr.dev/docs/cache"},
	}

	issues = map[Id]*Issue{
		rootNotFoundIssue.Id():     rootNotFoundIssue,
		declParseErrorIssue.Id():   declParseErrorIssue,
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		shellNotFoundIssue.Id():    shellNotFoundIssue,
		toolsMissingIssue.Id():     toolsMissingIssue,
		dependencyCycleIssue.Id():  dependencyCycleIssue,
		installFailedIssue.Id():    installFailedIssue,
		cacheWriteFailedIssue.Id(): cacheWriteFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
