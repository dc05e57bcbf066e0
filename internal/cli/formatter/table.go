package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const colGap = 2

// RenderTable renders an aligned table under a header separator. Column
// widths are measured on visible width so styled cells line up.
func RenderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := columnWidths(headers, rows)

	var b strings.Builder
	writeRow(&b, widths, headers, StyleHeader.Render)

	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = StyleDim.Render(strings.Repeat("─", w))
	}
	writeRow(&b, widths, seps, nil)

	for _, row := range rows {
		writeRow(&b, widths, row, nil)
	}
	return b.String()
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}
	return widths
}

func writeRow(b *strings.Builder, widths []int, cells []string, style func(...string) string) {
	last := len(widths) - 1
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		visible := lipgloss.Width(cell)
		if style != nil {
			cell = style(cell)
		}
		b.WriteString(cell)
		if i < last {
			b.WriteString(strings.Repeat(" ", max(w-visible, 0)+colGap))
		}
	}
	b.WriteString("\n")
}
