// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"fibr-cli/internal/graph"
	"fibr-cli/internal/issue"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the module dependency graph",
	Long: `Print the discovered modules in dependency order, with each module's
dependents indented beneath it. A dependency cycle is diagnosed with the
modules involved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		root, err := app.Discovery.Root()
		if err != nil {
			return err
		}
		reg, err := app.Discovery.Discover(root)
		if err != nil {
			return err
		}

		g := graph.FromRegistry(reg)
		order, err := g.LoadOrder()
		var cycleErr *graph.CycleError
		if errors.As(err, &cycleErr) {
			fmt.Println(issue.Get(issue.DependencyCycleId).Render())
			return &ExitError{Code: 1, Err: cycleErr}
		}
		if err != nil {
			return err
		}

		for _, id := range order {
			marker := SuccessStyle.Render("●")
			if reg.Get(id) == nil {
				// Referenced but never discovered.
				marker = ErrorStyle.Render("?")
			}
			fmt.Printf("%s %s\n", marker, NameStyle.Render(id.String()))
			for _, dep := range g.Dependents(id) {
				fmt.Printf("  %s %s\n", SubtitleStyle.Render("└─"), VerboseStyle.Render(dep.String()))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
