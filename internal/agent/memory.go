package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"selfplay/internal/provider"
)

type memoryFile struct {
	Name     string             `json:"name"`
	System   string             `json:"system,omitempty"`
	Messages []provider.Message `json:"messages"`
}

// SaveMemory writes the bot's memory as JSON. The write is atomic so a
// crash mid-save never leaves a truncated file behind.
func (c *Chatbot) SaveMemory(path string) error {
	data, err := json.MarshalIndent(memoryFile{
		Name:     c.name,
		System:   c.system,
		Messages: c.memory,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	if err := writeAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}

// LoadMemory replaces the bot's memory with the saved exchange. Roles
// other than user/assistant are rejected; a memory file is a transcript,
// not a prompt.
func (c *Chatbot) LoadMemory(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read memory file: %w", err)
	}

	var file memoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode memory file: %w", err)
	}

	for i, msg := range file.Messages {
		if msg.Role != provider.RoleUser && msg.Role != provider.RoleAssistant {
			return fmt.Errorf("memory message %d: unexpected role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return fmt.Errorf("memory message %d: empty content", i)
		}
	}

	c.memory = file.Messages
	return nil
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
