package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorAccent  = lipgloss.Color("#FFD700")
	colorMuted   = lipgloss.Color("#636363")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleBorder  = lipgloss.NewStyle().Foreground(colorMuted)
	styleWarning = lipgloss.NewStyle().Foreground(colorAccent)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		}).
		Render()
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	fmt.Fprintln(w, renderTable(headers, rows))
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, styleTitle.Render(title))
}

func printWarning(w io.Writer, msg string) {
	if msg == "" {
		return
	}
	fmt.Fprintln(w, styleWarning.Render("! "+msg))
}

func printNote(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleMuted.Render(fmt.Sprintf(format, args...)))
}
