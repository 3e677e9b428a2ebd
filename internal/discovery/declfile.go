// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"sort"

	"fibr-cli/internal/conftree"
	"fibr-cli/internal/module"
	"fibr-cli/internal/toolcheck"
)

// defaultDecl is the built-in lowest-precedence configuration layer every
// module starts from.
func defaultDecl() conftree.Tree {
	return conftree.Tree{"enabled": true}
}

// extractModule turns a merged configuration tree into a module record.
// A tool declaration that fails validation marks the module failed at
// discovery (fails fast per module, never aborts siblings).
func extractModule(id module.ID, kind module.Kind, merged conftree.Tree, cand Candidate) *module.Module {
	m := &module.Module{
		ID:         id,
		Kind:       kind,
		Config:     merged,
		Enabled:    conftree.GetBool(merged, "enabled", true),
		State:      module.StatePending,
		Dir:        cand.Dir,
		InitScript: cand.InitScript,
	}

	for _, dep := range conftree.GetStringSlice(merged, "deps") {
		m.Deps = append(m.Deps, module.ID(dep))
	}
	// Chains implicitly depend on their owning module: a chain never
	// activates before its fiber.
	if parent := id.Parent(); parent != "" {
		m.Deps = append([]module.ID{parent}, m.Deps...)
	}

	tools, err := extractTools(merged)
	if err != nil {
		m.State = module.StateFailed
		m.Reason = err.Error()
		return m
	}
	m.Tools = tools
	return m
}

// extractTools decodes the tools map of a merged declaration. Tool names are
// processed in sorted order so the first configuration error reported is
// deterministic.
func extractTools(merged conftree.Tree) (map[string]toolcheck.Config, error) {
	raw := conftree.Subtree(merged, "tools")
	if raw == nil {
		return nil, nil
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]toolcheck.Config, len(raw))
	for _, name := range names {
		sub, ok := raw[name].(map[string]any)
		if !ok {
			// `tools: {psql: {}}` and `tools: {psql: }` both mean "default
			// check on the tool's own name".
			if raw[name] == nil {
				out[name] = toolcheck.Config{}
				continue
			}
			return nil, &toolcheck.ConfigurationError{Tool: name, Detail: "tool declaration must be a map"}
		}
		cfg, err := parseToolConfig(name, sub)
		if err != nil {
			return nil, err
		}
		out[name] = cfg
	}
	return out, nil
}

// parseToolConfig decodes one tool declaration and validates it: check-method
// exclusivity, eval expression syntax, and install method names.
func parseToolConfig(name string, tree conftree.Tree) (toolcheck.Config, error) {
	cfg := toolcheck.Config{
		CheckCommand:    conftree.GetString(tree, "check_command"),
		CheckPath:       conftree.GetString(tree, "check_path"),
		CheckEval:       conftree.GetString(tree, "check_eval"),
		CheckBrew:       conftree.GetString(tree, "check_brew"),
		CheckBrewCask:   conftree.GetString(tree, "check_brew_cask"),
		VersionCommand:  conftree.GetString(tree, "version_command"),
		ExpectedVersion: conftree.GetString(tree, "expected_version"),
		Optional:        conftree.GetBool(tree, "optional", false),
	}

	if install := conftree.Subtree(tree, "install"); install != nil {
		method := toolcheck.InstallMethod(conftree.GetString(install, "method"))
		switch method {
		case toolcheck.InstallBrew, toolcheck.InstallGit, toolcheck.InstallScript,
			toolcheck.InstallArchive, toolcheck.InstallCommand:
			cfg.Install = method
			cfg.InstallSpec = conftree.GetString(install, "spec")
		case "":
			return toolcheck.Config{}, &toolcheck.ConfigurationError{Tool: name, Detail: "install block requires a method"}
		default:
			return toolcheck.Config{}, &toolcheck.ConfigurationError{
				Tool:   name,
				Detail: fmt.Sprintf("unknown install method %q", method),
			}
		}
	}

	if err := cfg.Validate(name); err != nil {
		return toolcheck.Config{}, err
	}
	if cfg.CheckEval != "" {
		if err := toolcheck.ValidateEval(cfg.CheckEval); err != nil {
			return toolcheck.Config{}, &toolcheck.ConfigurationError{Tool: name, Detail: err.Error()}
		}
	}
	return cfg, nil
}
