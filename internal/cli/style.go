package cli

import "github.com/charmbracelet/lipgloss"

// Output styles. lipgloss drops colors when stdout is not a terminal.
var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	styleHeader  = lipgloss.NewStyle().Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
)
