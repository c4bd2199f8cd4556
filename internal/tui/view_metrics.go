package tui

import (
	"fmt"
	"sort"
	"strings"
)

func (m model) progressLine(width int) string {
	if m.maxTurns <= 0 {
		if m.running {
			return fmt.Sprintf("turn progress  %s  %d/INF", renderProgressBar(minInt(30, maxInt(12, width-30)), m.turnCount, 0), m.turnCount)
		}
		return "turn progress  unbounded"
	}

	barWidth := minInt(30, maxInt(12, width-34))
	bar := renderProgressBar(barWidth, m.turnCount, m.maxTurns)
	pct := int((float64(m.turnCount) / float64(m.maxTurns)) * 100)
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("turn progress  %s  %d/%d (%d%%)", bar, m.turnCount, m.maxTurns, pct)
}

func renderProgressBar(width int, current int, total int) string {
	if width <= 0 {
		return "[]"
	}
	if total <= 0 {
		if current <= 0 {
			return "[" + strings.Repeat("░", width) + "]"
		}
		return "[" + strings.Repeat("█", width) + "]"
	}

	ratio := float64(current) / float64(total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	if current > 0 && filled == 0 {
		filled = 1
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func (m model) speakerActivityLine(width int) string {
	if len(m.speakerTurns) == 0 {
		return "-"
	}

	speakers := make([]string, 0, len(m.speakerTurns))
	maxTurnsBySpeaker := 0
	for name, t := range m.speakerTurns {
		speakers = append(speakers, name)
		if t > maxTurnsBySpeaker {
			maxTurnsBySpeaker = t
		}
	}
	sort.Strings(speakers)
	if maxTurnsBySpeaker == 0 {
		return "no-turns"
	}

	parts := make([]string, 0, len(speakers))
	for _, name := range speakers {
		parts = append(parts, speakerInitial(name)+miniMeter(m.speakerTurns[name], maxTurnsBySpeaker, 4))
	}
	return truncateText(strings.Join(parts, " "), width)
}

func miniMeter(value int, maxValue int, width int) string {
	if width <= 0 {
		return ""
	}
	if maxValue <= 0 {
		return strings.Repeat("·", width)
	}
	filled := int((float64(value) / float64(maxValue)) * float64(width))
	if value > 0 && filled == 0 {
		filled = 1
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("▮", filled) + strings.Repeat("▯", width-filled)
}
