package styles

import (
	"github.com/allbin/go-serial-terminal/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Line above the port table
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colors.Text).
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Subtext0).
				BorderBottom(true)

	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)
