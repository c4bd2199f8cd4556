package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	response *llms.ContentResponse
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	return f.response, f.err
}

func (f *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestLangChainGenerate(t *testing.T) {
	model := &fakeModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: "  a fine answer  ",
			GenerationInfo: map[string]any{
				"PromptTokens":     20,
				"CompletionTokens": 9,
				"TotalTokens":      29,
			},
		}},
	}}

	lc, err := NewLangChain("anthropic", model)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	text, usage, err := lc.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleAssistant, Content: "earlier reply"},
		{Role: RoleUser, Content: "next question"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "a fine answer" {
		t.Fatalf("text=%q", text)
	}
	if usage.PromptTokens != 20 || usage.CompletionTokens != 9 || usage.TotalTokens != 29 {
		t.Fatalf("usage=%+v", usage)
	}

	wantRoles := []llms.ChatMessageType{
		llms.ChatMessageTypeSystem,
		llms.ChatMessageTypeAI,
		llms.ChatMessageTypeHuman,
	}
	if len(model.messages) != len(wantRoles) {
		t.Fatalf("messages=%d want=%d", len(model.messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if model.messages[i].Role != want {
			t.Fatalf("message %d role=%s want=%s", i, model.messages[i].Role, want)
		}
	}
}

func TestLangChainUsageAnthropicKeys(t *testing.T) {
	model := &fakeModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: "ok",
			GenerationInfo: map[string]any{
				"InputTokens":  int64(15),
				"OutputTokens": int64(4),
			},
		}},
	}}

	lc, err := NewLangChain("anthropic", model)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	_, usage, err := lc.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.PromptTokens != 15 || usage.CompletionTokens != 4 {
		t.Fatalf("usage=%+v", usage)
	}
	if usage.TotalTokens != 19 {
		t.Fatalf("total=%d want computed 19", usage.TotalTokens)
	}
}

func TestLangChainEmptyChoices(t *testing.T) {
	lc, err := NewLangChain("ollama", &fakeModel{response: &llms.ContentResponse{}})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if _, _, err := lc.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestLangChainPropagatesModelError(t *testing.T) {
	boom := errors.New("backend down")
	lc, err := NewLangChain("ollama", &fakeModel{err: boom})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if _, _, err := lc.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

func TestForNameUnknown(t *testing.T) {
	if _, err := ForName("watsonx", Config{APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
