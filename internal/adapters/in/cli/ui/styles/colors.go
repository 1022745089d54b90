// Package styles provides the lipgloss palette and composed styles used by
// the secretvm CLI output.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Violet400 = lipgloss.Color("#a78bfa")
	Violet600 = lipgloss.Color("#7c3aed")

	Cyan400 = lipgloss.Color("#1ac5ff")

	Neutral200 = lipgloss.Color("#e5e5e5")
	Neutral500 = lipgloss.Color("#737373")
	Neutral700 = lipgloss.Color("#404040")

	NeonGreen  = lipgloss.Color("#00ff88")
	NeonRed    = lipgloss.Color("#ff4444")
	NeonYellow = lipgloss.Color("#fbbf24")

	// Semantic colors
	ColorPrimary = Violet400
	ColorAccent  = Violet600
	ColorSuccess = NeonGreen
	ColorWarning = NeonYellow
	ColorError   = NeonRed
	ColorInfo    = Cyan400

	ColorText      = Neutral200
	ColorTextMuted = Neutral500
	ColorBorder    = Neutral700
)
