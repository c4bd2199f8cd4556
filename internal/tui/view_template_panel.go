package tui

import (
	"fmt"
	"strings"
)

func (m *model) buildTemplatePanel(width int, maxLines int) string {
	if maxLines <= 0 {
		maxLines = 1
	}
	names := m.templates.Names()
	if len(names) == 0 {
		return buildEmptyTemplatePanel(width, maxLines)
	}
	if m.shouldUseCompactTemplatePanel(width, maxLines, len(names)) {
		return m.buildCompactTemplatePanel(names, width, maxLines)
	}

	lines := make([]string, 0, maxLines)
	nameWidth := maxInt(10, width-10)
	descWidth := maxInt(10, width-6)
	rendered := 0

	for i, name := range names {
		tmpl, _ := m.templates.Get(name)
		marker := " "
		if m.running && name == m.currentTemplate {
			marker = ">"
		}

		block := []string{
			fmt.Sprintf("%s %2d) %s", marker, i+1, truncateText(name, nameWidth)),
			"    " + truncateText(tmpl.Description, descWidth),
			"",
		}

		if len(lines)+len(block) > maxLines {
			break
		}
		lines = append(lines, block...)
		rendered = i + 1
	}

	if m.running && strings.TrimSpace(m.currentTemplate) != "" {
		lines = appendOverflowLine(lines, "running: "+truncateText(m.currentTemplate, width), maxLines, width)
	}
	if rendered < len(names) {
		lines = appendOverflowLine(lines, fmt.Sprintf("... +%d more templates", len(names)-rendered), maxLines, width)
	}
	return strings.Join(lines, "\n")
}

func buildEmptyTemplatePanel(width int, maxLines int) string {
	if maxLines <= 1 {
		return truncateText("no templates loaded (try /load)", maxInt(12, width))
	}
	lines := []string{
		truncateText("(no templates loaded)", maxInt(12, width)),
		truncateText("try /load", maxInt(12, width)),
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n")
}

func (m model) shouldUseCompactTemplatePanel(width int, maxLines int, count int) bool {
	if width < 34 {
		return true
	}
	return count*3 > maxLines
}

func (m model) buildCompactTemplatePanel(names []string, width int, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := make([]string, 0, maxLines)
	nameWidth := maxInt(10, width-8)
	overflow := len(names) > maxLines
	visible := maxLines
	if overflow {
		visible = maxLines - 1
	}
	if visible < 0 {
		visible = 0
	}

	for i := 0; i < len(names) && i < visible; i++ {
		marker := " "
		if m.running && names[i] == m.currentTemplate {
			marker = ">"
		}
		lines = append(lines, fmt.Sprintf("%s %2d) %s", marker, i+1, truncateText(names[i], nameWidth)))
	}
	if overflow {
		lines = appendOverflowLine(lines, fmt.Sprintf("... +%d more templates", len(names)-visible), maxLines, width)
	}
	return strings.Join(lines, "\n")
}

func appendOverflowLine(lines []string, line string, maxLines int, width int) []string {
	line = truncateText(line, maxInt(12, width))
	if maxLines <= 0 {
		return lines
	}
	if len(lines) < maxLines {
		return append(lines, line)
	}
	if len(lines) == 0 {
		return lines
	}
	lines[maxLines-1] = line
	return lines
}
