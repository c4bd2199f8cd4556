package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChain adapts an llms.Model to the Provider interface. Token
// usage key names differ per backend, so extraction tries the known
// variants.
type LangChain struct {
	backend string
	model   llms.Model
}

func NewLangChain(backend string, model llms.Model) (*LangChain, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if strings.TrimSpace(backend) == "" {
		return nil, errors.New("backend name is required")
	}
	return &LangChain{backend: strings.TrimSpace(backend), model: model}, nil
}

func (l *LangChain) Name() string {
	return l.backend
}

func (l *LangChain) Generate(ctx context.Context, messages []Message) (string, Usage, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	resp, err := l.model.GenerateContent(ctx, content)
	if err != nil {
		return "", Usage{}, fmt.Errorf("%s generate: %w", l.backend, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("empty model output")
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Content)
	if text == "" {
		return "", Usage{}, errors.New("empty model output")
	}
	return text, usageFromGenerationInfo(choice.GenerationInfo), nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func usageFromGenerationInfo(info map[string]any) Usage {
	if info == nil {
		return Usage{}
	}

	// OpenAI-compatible backends report PromptTokens/CompletionTokens,
	// anthropic reports InputTokens/OutputTokens.
	usage := Usage{
		PromptTokens:     firstInt(info, "PromptTokens", "InputTokens", "input_tokens"),
		CompletionTokens: firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens"),
		TotalTokens:      firstInt(info, "TotalTokens", "total_tokens"),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch n := info[key].(type) {
		case int:
			if n > 0 {
				return n
			}
		case int64:
			if n > 0 {
				return int(n)
			}
		case float64:
			if n > 0 {
				return int(n)
			}
		}
	}
	return 0
}

func newAnthropic(cfg Config) (*LangChain, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model is required")
	}

	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}
	return NewLangChain("anthropic", llm)
}

func newOllama(cfg Config) (*LangChain, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model is required")
	}

	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return NewLangChain("ollama", llm)
}
