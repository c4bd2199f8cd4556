// Package turnfmt renders conversation turns as indented line blocks
// for the text front ends.
package turnfmt

import (
	"fmt"
	"strings"

	"selfplay/internal/dialogue"
)

type Options struct {
	Header         func(dialogue.Turn) string
	Separator      func(dialogue.Turn) string
	ContentPrefix  string
	KeepBlankLines bool
}

// FormatLines renders one turn as a block: blank line, separator,
// header, indented response lines, separator, blank line.
func FormatLines(turn dialogue.Turn, opts Options) []string {
	header := defaultHeader(turn)
	if opts.Header != nil {
		header = opts.Header(turn)
	}

	separator := defaultSeparator()
	if opts.Separator != nil {
		separator = opts.Separator(turn)
	}

	prefix := opts.ContentPrefix
	if prefix == "" {
		prefix = "  "
	}

	lines := []string{"", separator, header}
	contentLines := strings.Split(strings.TrimSpace(turn.Response), "\n")
	appended := false

	for _, line := range contentLines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if opts.KeepBlankLines {
				lines = append(lines, "")
			}
			continue
		}
		lines = append(lines, prefix+trimmed)
		appended = true
	}
	if !appended {
		lines = append(lines, prefix+"(empty)")
	}
	lines = append(lines, separator, "")
	return lines
}

func defaultHeader(turn dialogue.Turn) string {
	return fmt.Sprintf("turn %d | %s", turn.Index, turn.Speaker)
}

func defaultSeparator() string {
	return strings.Repeat("-", 52)
}
