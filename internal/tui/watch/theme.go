// Package watch implements the buildmaster watch TUI: a live view of the
// builders a running service supervises and the output of the selected one.
package watch

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	colorGreen  = lipgloss.Color("#00FF00")
	colorYellow = lipgloss.Color("#FFFF00")
	colorRed    = lipgloss.Color("#FF0000")
	colorRose   = lipgloss.Color("#E06C75")
	colorGold   = lipgloss.Color("#E5C07B")
	colorPurple = lipgloss.Color("#874BFD")
	colorWhite  = lipgloss.Color("#FAFAFA")
	colorGrey   = lipgloss.Color("#888888")
	colorSlate  = lipgloss.Color("#666666")
	colorShadow = lipgloss.Color("#444444")
)

// Theme keeps every style the watch TUI uses in one place.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusIdle    lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
	Stderr    lipgloss.Style

	ActivityOn  lipgloss.Style
	ActivityOff lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func NewDefaultTheme() Theme {
	return Theme{
		StatusOK:      fg(colorGreen),
		StatusRunning: fg(colorYellow),
		StatusFailed:  fg(colorRed),
		StatusIdle:    fg(colorSlate),

		Border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPurple),
		Title:     fg(colorWhite).Bold(true).Padding(0, 1),
		Dim:       fg(colorGrey),
		Highlight: fg(colorGold),
		Stderr:    fg(colorRose),

		ActivityOn:  fg(colorGreen),
		ActivityOff: fg(colorShadow),
	}
}
