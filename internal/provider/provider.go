// Package provider abstracts chat-completion backends behind a single
// Generate call. The native OpenAI client talks to the Responses API
// directly; everything else goes through the langchaingo adapter.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider generates one reply for a message history. Implementations
// must be safe for concurrent use.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, Usage, error)
}

// Config carries the settings shared by all backends. BaseURL is
// optional for hosted APIs and names the server for ollama.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// ForName builds the backend selected by name. An empty name selects
// the native openai client.
func ForName(name string, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai":
		return NewOpenAI(cfg)
	case "anthropic":
		return newAnthropic(cfg)
	case "ollama":
		return newOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, anthropic or ollama)", name)
	}
}
