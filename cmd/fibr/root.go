// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fibr-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging and full error chains.
	verbose bool
	// cfgFile overrides the config file location.
	cfgFile string
	// rootDir overrides the module root.
	rootDir string

	// rootCmd is the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "fibr",
		Short: "A shell environment module bootstrapper",
		Long: TitleStyle.Render("fibr") + SubtitleStyle.Render(" - A shell environment module bootstrapper") + `

fibr organizes a shell environment as fibers: per-concern module
directories that declare the tools they need, the modules they depend
on, and optional nested chains. Loading resolves the dependency graph,
checks every declared tool, and reports exactly what is active and why.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Create a module root with a 'core' fiber directory
  2. Add a fibr.yaml to each fiber declaring deps and tools
  3. Load the environment with: fibr load

` + SubtitleStyle.Render("Examples:") + `
  fibr load                 Resolve and load all modules
  fibr load --install       Also install missing tools that declare how
  fibr status               Show each module's state and reason
  fibr tools check          Check every declared tool
  fibr watch                Reload whenever a declaration changes
  fibr config show          Show the effective configuration`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fibr/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "module root (default is the configured root or the working directory)")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(watchCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called once by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay renders an error for the user: ActionableErrors get
// their suggestion bullets, and verbose mode adds the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
