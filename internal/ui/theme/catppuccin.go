package theme

import "github.com/charmbracelet/lipgloss"

// Catppuccin mocha.
var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")
)

var (
	Screen = lipgloss.NewStyle().
		Background(Base).
		Foreground(Text).
		Padding(1, 2)

	Counters = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Background(Mantle).
		Foreground(Text).
		Padding(0, 1)

	Heading   = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Hint      = lipgloss.NewStyle().Foreground(Subtext0)
	Matched   = lipgloss.NewStyle().Foreground(Green)
	Unmatched = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Errored   = lipgloss.NewStyle().Foreground(Red).Bold(true)
)
