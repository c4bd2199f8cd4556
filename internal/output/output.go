// Package output exports finished conversations as JSON, Markdown and
// HTML transcripts.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"selfplay/internal/dialogue"
)

// SaveResult writes the JSON record plus Markdown and HTML transcripts
// next to it. Each file is written atomically.
func SaveResult(path string, result dialogue.Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := writeAtomic(path, jsonData, 0o644); err != nil {
		return fmt.Errorf("write json result file: %w", err)
	}

	mdData := []byte(formatResultMarkdown(result))
	if err := writeAtomic(siblingPath(path, ".md"), mdData, 0o644); err != nil {
		return fmt.Errorf("write markdown result file: %w", err)
	}

	htmlData, err := formatResultHTML(result)
	if err != nil {
		return fmt.Errorf("render html transcript: %w", err)
	}
	if err := writeAtomic(siblingPath(path, ".html"), htmlData, 0o644); err != nil {
		return fmt.Errorf("write html result file: %w", err)
	}
	return nil
}

func MarkdownPath(path string) string { return siblingPath(path, ".md") }

func HTMLPath(path string) string { return siblingPath(path, ".html") }

func siblingPath(path, newExt string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + newExt
	}
	return strings.TrimSuffix(path, ext) + newExt
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tempFile, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
	}

	if err := tempFile.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tempFile.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("move temp file: %w", err)
	}
	return nil
}

func formatResultMarkdown(result dialogue.Result) string {
	var b strings.Builder

	b.WriteString("# Conversation Result\n\n")
	b.WriteString("- id: " + safeText(result.ID) + "\n")
	if strings.TrimSpace(result.Scenario) != "" {
		b.WriteString("- scenario: " + safeText(result.Scenario) + "\n")
	}
	b.WriteString("- status: " + safeText(result.Status) + "\n")
	if !result.StartedAt.IsZero() {
		b.WriteString("- started_at: " + result.StartedAt.UTC().Format(time.RFC3339) + "\n")
	}
	if !result.EndedAt.IsZero() {
		b.WriteString("- ended_at: " + result.EndedAt.UTC().Format(time.RFC3339) + "\n")
	}
	if !result.StartedAt.IsZero() && !result.EndedAt.IsZero() {
		b.WriteString("- duration: " + result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond).String() + "\n")
	}
	b.WriteString(fmt.Sprintf("- turns: %d\n", len(result.Turns)))

	b.WriteString("\n## Opening Message\n\n")
	b.WriteString(markdownBulletedText(result.Start, "") + "\n")

	b.WriteString("\n## End Signal\n\n")
	b.WriteString(fmt.Sprintf("- detected: %t\n", result.EndSignal.Detected))
	b.WriteString(fmt.Sprintf("- confidence: %.2f\n", result.EndSignal.Confidence))
	if strings.TrimSpace(result.EndSignal.Reason) != "" {
		b.WriteString("- reason: " + safeText(result.EndSignal.Reason) + "\n")
	}
	if result.EndSignal.AtTurn > 0 {
		b.WriteString(fmt.Sprintf("- at_turn: %d\n", result.EndSignal.AtTurn))
	}

	b.WriteString("\n## Turns\n\n")
	if len(result.Turns) == 0 {
		b.WriteString("- no turns\n")
	}
	for _, turn := range result.Turns {
		b.WriteString(fmt.Sprintf("### Turn %d · %s\n\n", turn.Index, safeText(turn.Speaker)))
		if !turn.Timestamp.IsZero() {
			b.WriteString("- timestamp: " + turn.Timestamp.UTC().Format(time.RFC3339) + "\n")
		}
		b.WriteString("- response:\n")
		b.WriteString(markdownBulletedText(turn.Response, "  ") + "\n\n")
	}

	b.WriteString("## Metrics\n\n")
	b.WriteString(fmt.Sprintf("- latency_ms: %d\n", result.Metrics.LatencyMS))
	b.WriteString(fmt.Sprintf("- prompt_tokens: %d\n", result.Metrics.PromptTokens))
	b.WriteString(fmt.Sprintf("- completion_tokens: %d\n", result.Metrics.CompletionTokens))
	b.WriteString(fmt.Sprintf("- total_tokens: %d\n", result.Metrics.TotalTokens))
	return b.String()
}

func safeText(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return strings.ReplaceAll(v, "\n", " ")
}

func markdownBulletedText(v string, indent string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	v = strings.TrimSpace(v)
	if v == "" {
		return indent + "- (empty)"
	}
	lines := strings.Split(v, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if hasListPrefix(trimmed) || strings.HasPrefix(trimmed, "> ") {
			out = append(out, indent+trimmed)
			continue
		}
		out = append(out, indent+"- "+trimmed)
	}
	if len(out) == 0 {
		return indent + "- (empty)"
	}
	return strings.Join(out, "\n")
}

func hasListPrefix(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
		return true
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(line) {
		return false
	}
	return line[i] == '.' && line[i+1] == ' '
}

func NewTimestampPath(dir string, now time.Time) string {
	name := now.UTC().Format("20060102-150405.000000000") + "-conversation.json"
	return filepath.Join(dir, name)
}
