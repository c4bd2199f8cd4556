package turnfmt

import (
	"strings"
	"testing"

	"selfplay/internal/dialogue"
)

func TestFormatLinesKeepsBlankLinesWhenEnabled(t *testing.T) {
	turn := dialogue.Turn{
		Index:    1,
		Speaker:  "Doctor",
		Response: "line1\n\nline2",
	}

	lines := FormatLines(turn, Options{
		Header:         func(dialogue.Turn) string { return "header" },
		Separator:      func(dialogue.Turn) string { return "---" },
		KeepBlankLines: true,
	})
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "line1\n\n  line2") {
		t.Fatalf("expected preserved blank line, got %q", joined)
	}
}

func TestFormatLinesSkipsBlankLinesWhenDisabled(t *testing.T) {
	turn := dialogue.Turn{
		Index:    1,
		Speaker:  "Doctor",
		Response: "line1\n\nline2",
	}

	lines := FormatLines(turn, Options{
		Header:         func(dialogue.Turn) string { return "header" },
		Separator:      func(dialogue.Turn) string { return "---" },
		KeepBlankLines: false,
	})
	joined := strings.Join(lines, "\n")
	if strings.Contains(joined, "line1\n\n  line2") {
		t.Fatalf("expected blank line to be removed, got %q", joined)
	}
}

func TestFormatLinesDefaults(t *testing.T) {
	lines := FormatLines(dialogue.Turn{Index: 4, Speaker: "Patient", Response: ""}, Options{})
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "turn 4 | Patient") {
		t.Fatalf("expected default header, got %q", joined)
	}
	if !strings.Contains(joined, "  (empty)") {
		t.Fatalf("expected empty placeholder, got %q", joined)
	}
}
