package theme

import (
	"github.com/charmbracelet/lipgloss"

	scoring "tabtrail/internal/modules/scoring/domain"
)

var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	App = lipgloss.NewStyle().
		Foreground(Text).
		Padding(0, 1)

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(0, 1)

	PaneActive = Pane.BorderForeground(Lavender)

	Title    = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted    = lipgloss.NewStyle().Foreground(Subtext0)
	Hot      = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Selected = lipgloss.NewStyle().Foreground(Base).Background(Lavender)
	Error    = lipgloss.NewStyle().Foreground(Red)
)

// Score colors a distraction or drift label.
func Score(label string) lipgloss.Style {
	switch label {
	case scoring.LabelLow, scoring.DriftFocused:
		return lipgloss.NewStyle().Foreground(Green)
	case scoring.LabelMedium, scoring.DriftExploring:
		return lipgloss.NewStyle().Foreground(Yellow)
	case scoring.LabelHigh, scoring.DriftDrifting:
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	default:
		return Muted
	}
}
