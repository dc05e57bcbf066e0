package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2).
		PaddingTop(1).
		PaddingBottom(1)

	if title != "" {
		return boxStyle.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
	}
	return boxStyle.Render(content)
}

// FormatSeconds renders a credited duration: "0s", "45s", "12m 05s",
// "3h 04m 05s".
func FormatSeconds(total int64) string {
	if total <= 0 {
		return "0s"
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Timestamp renders an instant in UTC with second precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05Z")
}

// OptionalTimestamp renders t or a dimmed placeholder when nil.
func OptionalTimestamp(t *time.Time) string {
	if t == nil {
		return Dim("--")
	}
	return Timestamp(*t)
}

// Ago renders how long before now t was, at the coarsest useful unit.
func Ago(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return "in the future"
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}
