package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/xaenox/rex/internal/classifier"
	"github.com/xaenox/rex/internal/conversation"
	"github.com/xaenox/rex/internal/guidelines"
	"github.com/xaenox/rex/internal/models"
	"github.com/xaenox/rex/internal/prompt"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap/zaptest"
)

type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, p string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	return g.reply
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStorage, *stubGenerator) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStorage()
	gen := &stubGenerator{reply: "That sounds lovely, Alex."}

	svc := NewService(
		Config{},
		conversation.NewAdapter(store, storage.MatchExact, nil, logger),
		guidelines.NewAdapter(store, nil, logger),
		store,
		prompt.NewBuilder(prompt.DefaultPersona),
		gen,
		nil,
		logger,
	)
	return svc, store, gen
}

func TestHandleNewConversation(t *testing.T) {
	ctx := context.Background()
	svc, store, gen := newTestService(t)

	reply := svc.Handle(ctx, Request{Message: "Hi, I am Alex, feeling great today!"})
	if reply.Message != "That sounds lovely, Alex." {
		t.Errorf("Unexpected reply %q", reply.Message)
	}
	if reply.ConversationID == nil {
		t.Fatal("Expected a conversation id")
	}

	p := gen.lastPrompt()
	for _, want := range []string{
		"Their message feels happy. ",
		"Since they greeted me with 'Hi'",
		"I'm talking to Alex.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}

	messages, err := store.GetMessages(ctx, *reply.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	user, assistant := messages[0], messages[1]
	if user.Role != models.RoleUser || user.EmotionalTone != "happy" || user.Sender != "Alex" {
		t.Errorf("Unexpected user message %+v", user)
	}
	if assistant.Role != models.RoleAssistant || assistant.EmotionalTone != ReplyTone || assistant.Sender != "Rex" {
		t.Errorf("Unexpected assistant message %+v", assistant)
	}
	if assistant.Timestamp.Before(user.Timestamp) {
		t.Error("Expected messages in chronological order")
	}

	pool := classifier.FollowUpPool(classifier.Happy)
	found := false
	for _, q := range pool {
		if q == reply.FollowUp {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected follow-up from the happy pool, got %q", reply.FollowUp)
	}
}

func TestHandleResumesKnownSpeaker(t *testing.T) {
	ctx := context.Background()
	svc, store, gen := newTestService(t)

	first := svc.Handle(ctx, Request{Message: "I am Alex and I love rain", Username: "Alex"})
	second := svc.Handle(ctx, Request{Message: "what did I say earlier?", Username: "Alex"})

	if first.ConversationID == nil || second.ConversationID == nil || *first.ConversationID != *second.ConversationID {
		t.Fatalf("Expected the second turn to resume the first conversation, got %v and %v", first.ConversationID, second.ConversationID)
	}
	if !strings.Contains(gen.lastPrompt(), "- Alex: I am Alex and I love rain") {
		t.Error("Expected history from the earlier turn in the prompt")
	}

	all, _ := store.ListConversations(ctx)
	if len(all) != 1 {
		t.Errorf("Expected 1 conversation, got %d", len(all))
	}
}

func TestHandleExplicitConversation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	conv, _ := store.CreateConversation(ctx, "Sam")
	reply := svc.Handle(ctx, Request{Message: "why is the sky blue?", ConversationID: &conv.ID})

	if reply.ConversationID == nil || *reply.ConversationID != conv.ID {
		t.Fatalf("Expected explicit conversation to be used, got %v", reply.ConversationID)
	}
	messages, _ := store.GetMessages(ctx, conv.ID)
	if len(messages) != 2 || messages[0].EmotionalTone != "curious" || messages[0].Sender != AnonymousName {
		t.Errorf("Unexpected messages %+v", messages)
	}
}

func TestHandleAdminTrigger(t *testing.T) {
	svc, store, gen := newTestService(t)

	reply := svc.Handle(context.Background(), Request{Message: "  HeyOpenHereIAm \n"})
	if !reply.AdminRequest || reply.Message != AdminAccessReply {
		t.Errorf("Expected admin access reply, got %+v", reply)
	}
	if len(gen.prompts) != 0 {
		t.Error("Expected no generation for the trigger phrase")
	}
	if all, _ := store.ListConversations(context.Background()); len(all) != 0 {
		t.Error("Expected no conversation for the trigger phrase")
	}
}

func TestHandleBlankMessage(t *testing.T) {
	svc, _, gen := newTestService(t)

	reply := svc.Handle(context.Background(), Request{Message: "   "})
	if reply.Message == "" || reply.AdminRequest {
		t.Errorf("Unexpected reply %+v", reply)
	}
	if len(gen.prompts) != 0 {
		t.Error("Expected no generation for a blank message")
	}
}

func TestHandleUsesLatestGuidelines(t *testing.T) {
	ctx := context.Background()
	svc, _, gen := newTestService(t)

	svc.Handle(ctx, Request{Message: "hello"})
	if strings.Contains(gen.lastPrompt(), "MUST ALWAYS USE HINGLISH") {
		t.Fatal("Unexpected Hinglish directive before the edit")
	}

	svc.guidelines.Snapshot(ctx, false)
	svc.guidelines.WriteMany(ctx, map[string]any{guidelines.KeyHinglishMode: "always"})

	svc.Handle(ctx, Request{Message: "hello again"})
	if !strings.Contains(gen.lastPrompt(), "MUST ALWAYS USE HINGLISH") {
		t.Error("Expected the guideline edit to apply on the next turn")
	}
}

func TestHandleIncludesReflections(t *testing.T) {
	ctx := context.Background()
	svc, store, gen := newTestService(t)

	store.CreateReflection(ctx, &models.Reflection{Title: "Monsoon", Content: "The first rain smells like home.", Type: models.StoryReflection})

	svc.Handle(ctx, Request{Message: "tell me something"})
	if !strings.Contains(gen.lastPrompt(), "Reflection 1 (story) - Monsoon:\nThe first rain smells like home.") {
		t.Error("Expected the unpublished reflection in the prompt")
	}
}

func TestGreetingFallsBackToDefault(t *testing.T) {
	svc, _, _ := newTestService(t)
	if got := svc.Greeting(context.Background()); got != guidelines.DefaultSettings[guidelines.KeyGreetingText] {
		t.Errorf("Unexpected greeting %q", got)
	}
}
