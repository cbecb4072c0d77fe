package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/quaternion/internal/core"
)

// Theme contains the HUD styles.
type Theme struct {
	// Header
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Paused   lipgloss.Style

	// Panels
	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style
	Muted      lipgloss.Style
	Warning    lipgloss.Style

	// Resource axes
	Axis map[core.Resource]lipgloss.Style

	// Progress bars
	BarFull  lipgloss.Style
	BarEmpty lipgloss.Style
	BarLead  lipgloss.Style // Track the leader is closest to

	// Overlays
	OverlayBorder lipgloss.Style
	OverlayTitle  lipgloss.Style
	Victory       lipgloss.Style
	Defeat        lipgloss.Style

	Help lipgloss.Style
}

// DefaultTheme returns the default HUD theme.
func DefaultTheme() Theme {
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Paused:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		PanelTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111")),
		Label:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		Warning:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),

		Axis: map[core.Resource]lipgloss.Style{
			core.Ore:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")), // Orange
			core.Energy:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")), // Yellow
			core.Biomass: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),  // Green
			core.Data:    lipgloss.NewStyle().Foreground(lipgloss.Color("51")),  // Cyan
		},

		BarFull:  lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
		BarEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		BarLead:  lipgloss.NewStyle().Foreground(lipgloss.Color("205")),

		OverlayBorder: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 3),
		OverlayTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		Victory:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		Defeat:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),

		Help: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// AxisStyle returns the style for a resource axis.
func (t Theme) AxisStyle(r core.Resource) lipgloss.Style {
	if s, ok := t.Axis[r]; ok {
		return s
	}
	return t.Value
}
