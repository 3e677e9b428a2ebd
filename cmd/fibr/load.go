// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"fibr-cli/internal/issue"
	"fibr-cli/internal/module"
	"fibr-cli/internal/provision"
	"fibr-cli/internal/resolver"

	"github.com/spf13/cobra"
)

var (
	// installMissing enables install-then-recheck for tools that declare an
	// install method.
	installMissing bool
	// noCache skips the persisted tool status cache for this run.
	noCache bool

	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Resolve and load all modules",
		Long: `Resolve and load all modules under the module root.

Fibers and their chains are discovered, each module's dependencies and
declared tools are evaluated over bounded passes, and every module ends
the run loaded, disabled, or failed with a reason. The command exits
non-zero when any module fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			rep, err := runResolution(cmd.Context(), app, installMissing)
			if err != nil {
				return err
			}
			printReport(rep, installMissing)
			return exitForReport(rep)
		},
	}
)

func init() {
	loadCmd.Flags().BoolVar(&installMissing, "install", false, "install missing tools that declare an install method")
	loadCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore the persisted tool status cache")
}

// runResolution runs the full discover-check-resolve pipeline.
func runResolution(ctx context.Context, app *App, install bool) (*resolver.Report, error) {
	root, err := app.Discovery.Root()
	if err != nil {
		fmt.Println(issue.Get(issue.RootNotFoundId).Render())
		return nil, err
	}
	reg, err := app.Discovery.Discover(root)
	if err != nil {
		return nil, err
	}
	if anyBrokenDeclaration(reg) {
		fmt.Println(issue.Get(issue.DeclParseErrorId).Render())
	}

	opts := []resolver.Option{
		resolver.WithLogger(app.Logger.WithPrefix("resolver")),
		resolver.WithActivator(scriptActivator{pool: app.Pool, timeout: app.Config.CheckTimeout}),
	}
	if app.Cache != nil && !noCache {
		opts = append(opts, resolver.WithStatusStore(app.Cache))
	}
	if install {
		opts = append(opts, resolver.WithInstaller(
			provision.NewManager(app.Pool, provision.WithLogger(app.Logger.WithPrefix("provision")))))
	}

	r := resolver.New(reg, app.Checker, app.Discovery, resolver.Options{
		Concurrency:  app.Config.Concurrency,
		CheckTimeout: app.Config.CheckTimeout,
		Install:      install,
	}, opts...)
	return r.Resolve(ctx)
}

// anyBrokenDeclaration reports whether discovery already failed a module,
// which only happens when its declaration file could not be parsed.
func anyBrokenDeclaration(reg *module.Registry) bool {
	for _, m := range reg.All() {
		if m.State == module.StateFailed {
			return true
		}
	}
	return false
}

// printReport writes the per-module outcome lines. installAttempted selects
// the guidance shown for unsatisfied tools: install-then-recheck already ran,
// so a plain "pass --install" hint would be wrong.
func printReport(rep *resolver.Report, installAttempted bool) {
	loaded, disabled, failed := 0, 0, 0
	for _, ms := range rep.Modules {
		switch ms.State {
		case module.StateLoaded:
			loaded++
			fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), NameStyle.Render(ms.ID.String()))
		case module.StateDisabled:
			disabled++
			fmt.Printf("%s %s %s\n", WarningStyle.Render("-"), NameStyle.Render(ms.ID.String()),
				SubtitleStyle.Render("(disabled)"))
		case module.StateFailed:
			failed++
			fmt.Printf("%s %s %s\n", ErrorStyle.Render("✗"), NameStyle.Render(ms.ID.String()),
				ErrorStyle.Render(ms.Reason))
		}
	}

	fmt.Println()
	fmt.Printf("%s %d loaded, %d disabled, %d failed (%d passes)\n",
		SubtitleStyle.Render("Summary:"), loaded, disabled, failed, rep.Passes)
	if failed > 0 && anyToolFailure(rep) {
		fmt.Println()
		if installAttempted {
			fmt.Println(issue.Get(issue.InstallFailedId).Render())
		} else {
			fmt.Println(issue.Get(issue.ToolsMissingId).Render())
		}
	}
}

// anyToolFailure reports whether any checked tool came back unsatisfied.
func anyToolFailure(rep *resolver.Report) bool {
	for _, res := range rep.Tools {
		if !res.Satisfied() {
			return true
		}
	}
	return false
}

// exitForReport maps failed modules to a non-zero exit code.
func exitForReport(rep *resolver.Report) error {
	for _, ms := range rep.Modules {
		if ms.State == module.StateFailed {
			return &ExitError{Code: 1, Err: fmt.Errorf("%d module(s) failed to load", countFailed(rep))}
		}
	}
	return nil
}

func countFailed(rep *resolver.Report) int {
	n := 0
	for _, ms := range rep.Modules {
		if ms.State == module.StateFailed {
			n++
		}
	}
	return n
}

// firstLine trims output to its first non-empty line for one-line summaries.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
