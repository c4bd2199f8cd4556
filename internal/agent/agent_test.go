package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"selfplay/internal/dialogue"
	"selfplay/internal/provider"
)

type fakeProvider struct {
	replies []string
	err     error
	calls   int
	lastMsg []provider.Message
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, messages []provider.Message) (string, provider.Usage, error) {
	f.lastMsg = messages
	if f.err != nil {
		return "", provider.Usage{}, f.err
	}
	reply := "fallback reply"
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return reply, provider.Usage{PromptTokens: 8, CompletionTokens: 3, TotalTokens: 11}, nil
}

func TestChatbotReplyBuildsContext(t *testing.T) {
	llm := &fakeProvider{replies: []string{"first answer", "second answer"}}
	bot, err := NewChatbot("sage", "answer briefly", llm)
	if err != nil {
		t.Fatalf("new chatbot: %v", err)
	}

	out, err := bot.Reply(context.Background(), dialogue.ReplyInput{Message: "what is compost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Content != "first answer" {
		t.Fatalf("content=%q", out.Content)
	}
	if out.Usage.TotalTokens != 11 {
		t.Fatalf("usage=%+v", out.Usage)
	}

	// First call: system + user.
	if len(llm.lastMsg) != 2 {
		t.Fatalf("messages=%d want=2", len(llm.lastMsg))
	}
	if llm.lastMsg[0].Role != provider.RoleSystem || llm.lastMsg[0].Content != "answer briefly" {
		t.Fatalf("system message=%+v", llm.lastMsg[0])
	}

	if _, err := bot.Reply(context.Background(), dialogue.ReplyInput{Message: "and mulch"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second call: system + prior exchange + new user message.
	wantRoles := []string{
		provider.RoleSystem,
		provider.RoleUser, provider.RoleAssistant,
		provider.RoleUser,
	}
	if len(llm.lastMsg) != len(wantRoles) {
		t.Fatalf("messages=%d want=%d", len(llm.lastMsg), len(wantRoles))
	}
	for i, want := range wantRoles {
		if llm.lastMsg[i].Role != want {
			t.Fatalf("message %d role=%s want=%s", i, llm.lastMsg[i].Role, want)
		}
	}
	if bot.TurnCount() != 2 {
		t.Fatalf("turn count=%d want=2", bot.TurnCount())
	}
}

func TestChatbotReplyErrorLeavesMemoryUntouched(t *testing.T) {
	boom := errors.New("rate limited")
	llm := &fakeProvider{err: boom}
	bot, err := NewChatbot("sage", "", llm)
	if err != nil {
		t.Fatalf("new chatbot: %v", err)
	}

	if _, err := bot.Reply(context.Background(), dialogue.ReplyInput{Message: "hello"}); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if bot.TurnCount() != 0 {
		t.Fatalf("turn count=%d want=0", bot.TurnCount())
	}
}

func TestChatbotRejectsEmptyMessage(t *testing.T) {
	bot, err := NewChatbot("sage", "", &fakeProvider{})
	if err != nil {
		t.Fatalf("new chatbot: %v", err)
	}
	if _, err := bot.Reply(context.Background(), dialogue.ReplyInput{Message: "  "}); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestChatbotMemoryRoundTrip(t *testing.T) {
	llm := &fakeProvider{replies: []string{"an answer"}}
	bot, err := NewChatbot("sage", "be kind", llm)
	if err != nil {
		t.Fatalf("new chatbot: %v", err)
	}
	if _, err := bot.Reply(context.Background(), dialogue.ReplyInput{Message: "a question"}); err != nil {
		t.Fatalf("reply: %v", err)
	}

	path := filepath.Join(t.TempDir(), "memory.json")
	if err := bot.SaveMemory(path); err != nil {
		t.Fatalf("save memory: %v", err)
	}

	restored, err := NewChatbot("sage", "be kind", &fakeProvider{})
	if err != nil {
		t.Fatalf("new chatbot: %v", err)
	}
	if err := restored.LoadMemory(path); err != nil {
		t.Fatalf("load memory: %v", err)
	}
	if restored.TurnCount() != 1 {
		t.Fatalf("turn count=%d want=1", restored.TurnCount())
	}

	bot.Reset()
	if bot.TurnCount() != 0 {
		t.Fatal("reset did not clear memory")
	}
}

func TestChatbotLoadMemoryRejectsBadRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := writeAtomic(path, []byte(`{"name":"sage","messages":[{"role":"system","content":"x"}]}`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	bot, err := NewChatbot("sage", "", &fakeProvider{})
	if err != nil {
		t.Fatalf("new chatbot: %v", err)
	}
	if err := bot.LoadMemory(path); err == nil {
		t.Fatal("expected error for system role in memory")
	}
}
