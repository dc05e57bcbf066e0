package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderGauge renders used against capacity, e.g. "[██████░░░░] 2/3".
// A fuller gauge is worse, so it turns yellow from two thirds and red at
// capacity.
func RenderGauge(used, capacity, width int) string {
	if width < 2 {
		width = 2
	}
	if capacity <= 0 {
		return fmt.Sprintf("[%s] %d/-", StyleDim.Render(strings.Repeat(emptyBlock, width)), used)
	}

	pct := float64(used) / float64(capacity)
	if pct < 0 {
		pct = 0
	}
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)

	style := StyleGreen
	switch {
	case used >= capacity:
		style = StyleRed
	case pct >= 0.66:
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %d/%d", style.Render(bar), used, capacity)
}
