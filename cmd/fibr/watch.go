// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"fibr-cli/internal/watch"

	"github.com/spf13/cobra"
)

var (
	// watchDebounce is the quiet period before re-resolving.
	watchDebounce time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Reload whenever a declaration changes",
		Long: `Watch the module root and re-run resolution whenever a fibr.yaml,
chain declaration, or init script changes. Blocks until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return runWatch(cmd.Context(), app)
		},
	}
)

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period after the last change before reloading")
}

func runWatch(ctx context.Context, app *App) error {
	root, err := app.Discovery.Root()
	if err != nil {
		return err
	}

	reload := func(ctx context.Context, changed []string) error {
		fmt.Println()
		fmt.Printf("%s %v\n", SubtitleStyle.Render("Changed:"), changed)
		rep, err := runResolution(ctx, app, false)
		if err != nil {
			// A broken declaration mid-edit must not kill the watcher.
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
			return nil
		}
		printReport(rep, false)
		// Changed declarations may change tool requirements; flush so other
		// fibr invocations see the fresh statuses.
		if app.Cache != nil {
			if err := app.Cache.Flush(); err != nil {
				app.Logger.Warn("flush tool status cache", "err", err)
			}
		}
		return nil
	}

	// Resolve once up front so the first output does not wait for a change.
	rep, err := runResolution(ctx, app, false)
	if err != nil {
		return err
	}
	printReport(rep, false)

	w, err := watch.New(watch.Config{
		Root:     root,
		Debounce: watchDebounce,
		OnChange: reload,
		Logger:   app.Logger.WithPrefix("watch"),
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Watching for declaration changes... (Ctrl+C to stop)"))
	return w.Run(ctx)
}
