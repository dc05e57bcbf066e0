package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// SetColor switches styled output on or off for the whole process. Output
// piped to a file or another program should be plain.
func SetColor(enabled bool) {
	if enabled {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// StatePill returns a colored indicator for a timer state.
func StatePill(state domain.SessionState) string {
	switch state {
	case domain.StateActive:
		return StyleGreen.Render("● Active")
	case domain.StatePaused:
		return StyleYellow.Render("◐ Paused")
	case domain.StateIdle:
		return StyleBlue.Render("○ Idle")
	case domain.StateFinished:
		return StyleDim.Render("✔ Finished")
	case domain.StateAutoClosed:
		return StyleRed.Render("✖ Auto-closed")
	default:
		return StyleDim.Render(string(state))
	}
}

// KindBadge renders the item kind.
func KindBadge(kind domain.ItemKind) string {
	switch kind {
	case domain.KindQAReview:
		return StylePurple.Render("QA review")
	case domain.KindBug:
		return StyleRed.Render("Bug")
	case domain.KindTask:
		return StyleBlue.Render("Task")
	default:
		return StyleDim.Render(string(kind))
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}

// Warn renders text in the warning color.
func Warn(text string) string {
	return StyleYellow.Render(text)
}
