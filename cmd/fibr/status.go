// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"fibr-cli/internal/module"
	"fibr-cli/internal/resolver"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each module's state and reason",
	Long: `Resolve the module graph and print a table of every module: its kind,
terminal state, and for disabled or failed modules the reason. Unlike
'fibr load', status never installs anything and always exits zero when
resolution itself completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		rep, err := runResolution(cmd.Context(), app, false)
		if err != nil {
			return err
		}
		fmt.Print(renderStatusTable(rep))
		return nil
	},
}

// renderStatusTable formats the report as an aligned table.
func renderStatusTable(rep *resolver.Report) string {
	idWidth := len("MODULE")
	for _, ms := range rep.Modules {
		if l := len(ms.ID.String()); l > idWidth {
			idWidth = l
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-6s  %-8s  %s\n",
		TitleStyle.Render(pad("MODULE", idWidth)), "KIND", "STATE", "REASON")
	for _, ms := range rep.Modules {
		state := ms.State.String()
		switch ms.State {
		case module.StateLoaded:
			state = SuccessStyle.Render(pad(state, 8))
		case module.StateDisabled:
			state = WarningStyle.Render(pad(state, 8))
		case module.StateFailed:
			state = ErrorStyle.Render(pad(state, 8))
		default:
			state = pad(state, 8)
		}
		fmt.Fprintf(&b, "%s  %-6s  %s  %s\n",
			NameStyle.Render(pad(ms.ID.String(), idWidth)), ms.Kind, state,
			VerboseStyle.Render(ms.Reason))
	}
	return b.String()
}

// pad right-pads before styling; lipgloss escape codes would break %-*s.
func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
