package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xaenox/rex/internal/models"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap/zaptest"
)

type brokenStore struct {
	*storage.MemoryStorage
}

var errDown = errors.New("database is down")

func (brokenStore) CreateConversation(context.Context, string) (*models.Conversation, error) {
	return nil, errDown
}

func (brokenStore) FindConversations(context.Context, string, storage.MatchMode, int) ([]*models.Conversation, error) {
	return nil, errDown
}

func (brokenStore) ListConversations(context.Context) ([]*models.ConversationSummary, error) {
	return nil, errDown
}

func TestHistoryForOrdering(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(storage.NewMemoryStorage(), storage.MatchExact, nil, zaptest.NewLogger(t))

	older, ok := a.CreateConversation(ctx, "Alex")
	if !ok {
		t.Fatal("CreateConversation failed")
	}
	a.AppendMessage(ctx, older, "Alex", models.RoleUser, "old hello", "neutral")

	newer, _ := a.CreateConversation(ctx, "alex")
	a.AppendMessage(ctx, newer, "alex", models.RoleUser, "first", "neutral")
	a.AppendMessage(ctx, newer, "Rex", models.RoleAssistant, "second", "matching")

	a.CreateConversation(ctx, "Alexandra")

	history := a.HistoryFor(ctx, "ALEX", 5)
	if len(history) != 2 {
		t.Fatalf("Expected 2 conversations for exact match, got %d", len(history))
	}
	if history[0].ID != newer {
		t.Errorf("Expected most recent conversation first, got %d", history[0].ID)
	}
	if len(history[0].Messages) != 2 || history[0].Messages[0].Content != "first" {
		t.Errorf("Expected messages oldest first, got %+v", history[0].Messages)
	}

	matching := a.ConversationsMatching(ctx, "alex")
	if len(matching) != 2 {
		t.Errorf("Expected 2 matching conversations, got %d", len(matching))
	}
}

func TestSubstringMatchingIsOptIn(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(storage.NewMemoryStorage(), storage.MatchSubstring, nil, zaptest.NewLogger(t))

	for _, name := range []string{"Ann", "Anna", "Annie"} {
		a.CreateConversation(ctx, name)
	}

	if got := len(a.ConversationsMatching(ctx, "ann")); got != 3 {
		t.Errorf("Expected substring mode to match 3 conversations, got %d", got)
	}

	exact := NewAdapter(storage.NewMemoryStorage(), "", nil, zaptest.NewLogger(t))
	if exact.matchMode != storage.MatchExact {
		t.Errorf("Expected exact matching by default, got %q", exact.matchMode)
	}
}

func TestFailuresAreNonFatal(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(brokenStore{storage.NewMemoryStorage()}, storage.MatchExact, nil, zaptest.NewLogger(t))

	if _, ok := a.CreateConversation(ctx, "Alex"); ok {
		t.Error("Expected CreateConversation to report failure")
	}
	if a.AppendMessage(ctx, 99, "Alex", models.RoleUser, "hi", "neutral") {
		t.Error("Expected AppendMessage to report failure")
	}
	if history := a.HistoryFor(ctx, "Alex", 5); len(history) != 0 {
		t.Errorf("Expected empty history, got %d", len(history))
	}
	if all := a.AllConversations(ctx); all == nil || len(all) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", all)
	}
	if msgs := a.MessagesOf(ctx, 1); msgs == nil || len(msgs) != 0 {
		t.Errorf("Expected empty non-nil messages, got %v", msgs)
	}
}

func TestConcurrentAppendsAllLand(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(storage.NewMemoryStorage(), storage.MatchExact, nil, zaptest.NewLogger(t))
	id, _ := a.CreateConversation(ctx, "Alex")

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.AppendMessage(ctx, id, "Alex", models.RoleUser, fmt.Sprintf("msg %d", i), "neutral")
		}(i)
	}
	wg.Wait()

	if got := len(a.MessagesOf(ctx, id)); got != writers {
		t.Errorf("Expected %d messages, got %d", writers, got)
	}
	if a.locks.size() != 0 {
		t.Errorf("Expected key locks to be released, %d remain", a.locks.size())
	}
}
