package components

import (
	"fmt"
	"strings"

	serial "github.com/allbin/go-serial-terminal"
	"github.com/allbin/go-serial-terminal/internal/tui/styles"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// portColumns in display order; width is grown to fit the content
var portColumns = []struct {
	title string
	value func(serial.PortInfo) string
}{
	{"Port", func(p serial.PortInfo) string { return p.Path }},
	{"Type", func(p serial.PortInfo) string { return p.Description }},
	{"Manufacturer", func(p serial.PortInfo) string { return p.Manufacturer }},
	{"VID:PID", func(p serial.PortInfo) string {
		if p.VendorID == "" && p.ProductID == "" {
			return ""
		}
		return p.VendorID + ":" + p.ProductID
	}},
	{"Serial", func(p serial.PortInfo) string { return p.SerialNumber }},
	{"PnP ID", func(p serial.PortInfo) string { return p.PnPID }},
}

// RenderPortTable renders ports as a static styled table headed by a count.
// No ports renders nothing.
func RenderPortTable(ports []serial.PortInfo) string {
	if len(ports) == 0 {
		return ""
	}

	columns := make([]table.Column, len(portColumns))
	for i, c := range portColumns {
		columns[i] = table.Column{Title: c.title, Width: lipgloss.Width(c.title)}
	}

	rows := make([]table.Row, 0, len(ports))
	for _, p := range ports {
		row := make(table.Row, len(portColumns))
		for i, c := range portColumns {
			row[i] = c.value(p)
			if w := lipgloss.Width(row[i]); w > columns[i].Width {
				columns[i].Width = w
			}
		}
		rows = append(rows, row)
	}

	width := 0
	for _, c := range columns {
		width += c.Width + styles.TableCellStyle.GetHorizontalFrameSize()
	}

	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle
	s.Cell = styles.TableCellStyle
	s.Selected = lipgloss.NewStyle()

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithStyles(s),
		table.WithFocused(false),
		table.WithWidth(width),
	)
	t.SetHeight(len(rows) + lipgloss.Height(s.Header.Render(columns[0].Title)))

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Found %d serial port(s):", len(ports))))
	b.WriteString("\n\n")
	b.WriteString(t.View())
	b.WriteString("\n")
	return b.String()
}
