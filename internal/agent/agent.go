// Package agent implements a provider-backed conversation participant
// with rolling message memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"selfplay/internal/dialogue"
	"selfplay/internal/provider"
)

// Chatbot keeps the full exchange in memory and replays it to the
// provider on every Reply. A Chatbot belongs to one conversation at a
// time; it is not safe for concurrent use.
type Chatbot struct {
	name   string
	system string
	llm    provider.Provider
	memory []provider.Message
}

func NewChatbot(name, systemMessage string, llm provider.Provider) (*Chatbot, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("chatbot name is required")
	}
	if llm == nil {
		return nil, errors.New("provider is required")
	}
	return &Chatbot{
		name:   strings.TrimSpace(name),
		system: strings.TrimSpace(systemMessage),
		llm:    llm,
	}, nil
}

func (c *Chatbot) Name() string {
	return c.name
}

// Reply sends system message, accumulated memory and the incoming
// message to the provider. The exchange is appended to memory only
// after a successful generation, so a failed call leaves the bot
// unchanged.
func (c *Chatbot) Reply(ctx context.Context, input dialogue.ReplyInput) (dialogue.ReplyOutput, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return dialogue.ReplyOutput{}, errors.New("incoming message must not be empty")
	}

	messages := make([]provider.Message, 0, len(c.memory)+2)
	if c.system != "" {
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: c.system})
	}
	messages = append(messages, c.memory...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: message})

	text, usage, err := c.llm.Generate(ctx, messages)
	if err != nil {
		return dialogue.ReplyOutput{}, fmt.Errorf("%s reply: %w", c.name, err)
	}

	c.memory = append(c.memory,
		provider.Message{Role: provider.RoleUser, Content: message},
		provider.Message{Role: provider.RoleAssistant, Content: text},
	)

	return dialogue.ReplyOutput{
		Content: text,
		Usage: dialogue.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	}, nil
}

// TurnCount reports completed exchanges, not raw memory entries.
func (c *Chatbot) TurnCount() int {
	return len(c.memory) / 2
}

func (c *Chatbot) Reset() {
	c.memory = nil
}

var _ dialogue.Agent = (*Chatbot)(nil)
