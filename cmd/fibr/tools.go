// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"sort"

	"fibr-cli/internal/toolcheck"

	"github.com/spf13/cobra"
)

var (
	// refreshTools bypasses cached results and re-checks.
	refreshTools bool

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "Inspect declared tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	toolsCheckCmd = &cobra.Command{
		Use:   "check [tool...]",
		Short: "Check the status of declared tools",
		Long: `Check every tool declared across the module graph, or only the named
ones. Results come from the status cache when fresh; --refresh forces a
re-check. Exits non-zero when any required tool is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return runToolsCheck(cmd, app, args)
		},
	}
)

func init() {
	toolsCheckCmd.Flags().BoolVar(&refreshTools, "refresh", false, "re-check even when a fresh cached result exists")
	toolsCmd.AddCommand(toolsCheckCmd)
}

func runToolsCheck(cmd *cobra.Command, app *App, args []string) error {
	root, err := app.Discovery.Root()
	if err != nil {
		return err
	}
	reg, err := app.Discovery.Discover(root)
	if err != nil {
		return err
	}

	tools := reg.ToolConfigs()
	if len(args) > 0 {
		selected := make(map[string]toolcheck.Config, len(args))
		for _, name := range args {
			cfg, ok := tools[name]
			if !ok {
				return fmt.Errorf("tool %q is not declared by any module", name)
			}
			selected[name] = cfg
		}
		tools = selected
	}
	if len(tools) == 0 {
		fmt.Println(SubtitleStyle.Render("No tools declared."))
		return nil
	}

	// Serve fresh cache entries unless --refresh; check the rest in one
	// bounded batch.
	results := make(map[string]toolcheck.Result, len(tools))
	need := make(map[string]toolcheck.Config, len(tools))
	for name, cfg := range tools {
		if app.Cache != nil && !refreshTools {
			if res, ok := app.Cache.Lookup(name); ok {
				results[name] = res
				continue
			}
		}
		need[name] = cfg
	}
	if len(need) > 0 {
		checked := app.Checker.BatchCheck(cmd.Context(), need, app.Config.Concurrency, app.Config.CheckTimeout)
		for name, res := range checked {
			results[name] = res
		}
		if app.Cache != nil {
			app.Cache.StoreAll(checked)
		}
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	missing := 0
	for _, name := range names {
		res := results[name]
		switch {
		case res.Satisfied():
			fmt.Printf("%s %s %s\n", SuccessStyle.Render("✓"), NameStyle.Render(name),
				VerboseStyle.Render(res.Detail))
		case res.Status == toolcheck.StatusUnknown:
			fmt.Printf("%s %s %s\n", WarningStyle.Render("?"), NameStyle.Render(name),
				SubtitleStyle.Render("no check configured"))
		default:
			if !tools[name].Optional {
				missing++
			}
			fmt.Printf("%s %s %s\n", ErrorStyle.Render("✗"), NameStyle.Render(name),
				ErrorStyle.Render(res.Detail))
		}
	}

	if missing > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d required tool(s) missing", missing)}
	}
	return nil
}
