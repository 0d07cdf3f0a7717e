// Package colors holds the Catppuccin Mocha colors tsm renders with.
package colors

import "github.com/charmbracelet/lipgloss"

var (
	Subtext0 = lipgloss.Color("#a6adc8")
	Text     = lipgloss.Color("#cdd6f4")
	Mauve    = lipgloss.Color("#cba6f7")
)
