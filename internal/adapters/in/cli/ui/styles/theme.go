package styles

import "github.com/charmbracelet/lipgloss"

// Theme contains the composed styles of the CLI.
var Theme = struct {
	// Text styles
	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style

	// Status styles
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Badge styles
	BadgeSuccess lipgloss.Style
	BadgeError   lipgloss.Style
	BadgePending lipgloss.Style
	BadgeInfo    lipgloss.Style

	// List and detail styles
	ListItem   lipgloss.Style
	ListBullet lipgloss.Style
	Label      lipgloss.Style
	Snippet    lipgloss.Style
}{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary),

	Heading: lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		MarginTop(1),

	Muted: lipgloss.NewStyle().
		Foreground(ColorTextMuted),

	Success: lipgloss.NewStyle().
		Foreground(ColorSuccess),

	Error: lipgloss.NewStyle().
		Foreground(ColorError),

	Warning: lipgloss.NewStyle().
		Foreground(ColorWarning),

	Info: lipgloss.NewStyle().
		Foreground(ColorInfo),

	BadgeSuccess: lipgloss.NewStyle().
		Foreground(ColorSuccess).
		Bold(true),

	BadgeError: lipgloss.NewStyle().
		Foreground(ColorError).
		Bold(true),

	BadgePending: lipgloss.NewStyle().
		Foreground(ColorWarning),

	BadgeInfo: lipgloss.NewStyle().
		Foreground(ColorInfo),

	ListItem: lipgloss.NewStyle().
		Foreground(ColorText).
		PaddingLeft(1),

	ListBullet: lipgloss.NewStyle().
		Foreground(ColorPrimary),

	Label: lipgloss.NewStyle().
		Foreground(ColorTextMuted).
		Width(16),

	Snippet: lipgloss.NewStyle().
		Foreground(ColorText).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorBorder).
		PaddingLeft(1),
}

// RenderBadge colors a VM status by its lifecycle meaning.
func RenderBadge(status string) string {
	switch status {
	case "running", "active", "success", "ok":
		return Theme.BadgeSuccess.Render(status)
	case "error", "failed", "stopped", "terminated":
		return Theme.BadgeError.Render(status)
	case "pending", "creating", "starting", "stopping", "launching":
		return Theme.BadgePending.Render(status)
	default:
		return Theme.BadgeInfo.Render(status)
	}
}

// RenderListItem returns a formatted list item with bullet.
func RenderListItem(item string) string {
	return Theme.ListBullet.Render(IconBullet) + Theme.ListItem.Render(item)
}

// RenderError returns a styled error message.
func RenderError(msg string) string {
	return Theme.Error.Render(IconError + " " + msg)
}

// RenderSuccess returns a styled success message.
func RenderSuccess(msg string) string {
	return Theme.Success.Render(IconSuccess + " " + msg)
}

// RenderWarning returns a styled warning message.
func RenderWarning(msg string) string {
	return Theme.Warning.Render(IconWarning + " " + msg)
}

// RenderInfo returns a styled info message.
func RenderInfo(msg string) string {
	return Theme.Info.Render(IconInfo + " " + msg)
}
