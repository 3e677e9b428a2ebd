// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared across all CLI output. Teal-leaning, tuned for dark
// terminal backgrounds.
const (
	// ColorPrimary is teal, for titles and primary emphasis.
	ColorPrimary = lipgloss.Color("#2DD4BF")

	// ColorMuted is slate, for subtitles and de-emphasized content.
	ColorMuted = lipgloss.Color("#71717A")

	// ColorSuccess is green, for loaded modules and satisfied tools.
	ColorSuccess = lipgloss.Color("#22C55E")

	// ColorError is red, for failed modules and missing tools.
	ColorError = lipgloss.Color("#DC2626")

	// ColorWarning is yellow, for disabled modules and stale cache entries.
	ColorWarning = lipgloss.Color("#EAB308")

	// ColorHighlight is sky blue, for module IDs, tool names, and commands.
	ColorHighlight = lipgloss.Color("#38BDF8")

	// ColorVerbose is light slate, for verbose output and supplementary
	// detail.
	ColorVerbose = lipgloss.Color("#A1A1AA")
)

// Base styles built from the palette.
var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for loaded modules and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for failures.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for disabled modules and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// NameStyle is for module IDs and tool names.
	NameStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// VerboseStyle is for verbose output and supplementary information.
	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)
)
