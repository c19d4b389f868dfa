// Package conversation wraps conversation storage for the chat path. Every
// storage failure is logged and turned into a false or empty result so a
// chat turn can still answer.
package conversation

import (
	"context"

	"github.com/xaenox/rex/internal/metrics"
	"github.com/xaenox/rex/internal/models"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap"
)

type Adapter struct {
	store     storage.ConversationStore
	matchMode storage.MatchMode
	locks     *keyLock
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewAdapter(store storage.ConversationStore, matchMode storage.MatchMode, m *metrics.Metrics, logger *zap.Logger) *Adapter {
	if matchMode != storage.MatchSubstring {
		matchMode = storage.MatchExact
	}
	return &Adapter{
		store:     store,
		matchMode: matchMode,
		locks:     newKeyLock(),
		metrics:   m,
		logger:    logger,
	}
}

// CreateConversation returns the new conversation id, or false on failure.
func (a *Adapter) CreateConversation(ctx context.Context, displayName string) (int64, bool) {
	conv, err := a.store.CreateConversation(ctx, displayName)
	if err != nil {
		a.logger.Error("Failed to create conversation",
			zap.Error(err),
			zap.String("username", displayName))
		a.metrics.RecordStorageError("create_conversation")
		return 0, false
	}
	return conv.ID, true
}

// AppendMessage stores one message. Appends to the same conversation are
// applied one at a time in call order.
func (a *Adapter) AppendMessage(ctx context.Context, conversationID int64, sender, role, content, tone string) bool {
	unlock := a.locks.Lock(conversationID)
	defer unlock()

	msg := &models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Role:           role,
		Content:        content,
		EmotionalTone:  tone,
	}
	if err := a.store.AddMessage(ctx, msg); err != nil {
		a.logger.Error("Failed to save message",
			zap.Error(err),
			zap.Int64("conversation_id", conversationID),
			zap.String("role", role))
		a.metrics.RecordStorageError("append_message")
		return false
	}
	return true
}

// HistoryFor returns up to limit conversations for displayName, most recent
// first, each with its messages oldest first.
func (a *Adapter) HistoryFor(ctx context.Context, displayName string, limit int) []*models.Conversation {
	conversations, err := a.store.FindConversations(ctx, displayName, a.matchMode, limit)
	if err != nil {
		a.logger.Error("Failed to retrieve past conversations",
			zap.Error(err),
			zap.String("username", displayName))
		a.metrics.RecordStorageError("find_conversations")
		return nil
	}

	for _, conv := range conversations {
		messages, err := a.store.GetMessages(ctx, conv.ID)
		if err != nil {
			a.logger.Error("Failed to retrieve conversation messages",
				zap.Error(err),
				zap.Int64("conversation_id", conv.ID))
			a.metrics.RecordStorageError("get_messages")
			return nil
		}
		conv.Messages = messages
	}
	return conversations
}

// ConversationsMatching lists conversations for displayName without message
// bodies, most recent first.
func (a *Adapter) ConversationsMatching(ctx context.Context, displayName string) []*models.ConversationSummary {
	conversations, err := a.store.FindConversations(ctx, displayName, a.matchMode, 0)
	if err != nil {
		a.logger.Error("Failed to match conversations",
			zap.Error(err),
			zap.String("username", displayName))
		a.metrics.RecordStorageError("find_conversations")
		return nil
	}

	summaries := make([]*models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, &models.ConversationSummary{
			ID:        conv.ID,
			Username:  conv.Username,
			CreatedAt: conv.CreatedAt,
		})
	}
	return summaries
}

func (a *Adapter) AllConversations(ctx context.Context) []*models.ConversationSummary {
	summaries, err := a.store.ListConversations(ctx)
	if err != nil {
		a.logger.Error("Failed to retrieve all conversations", zap.Error(err))
		a.metrics.RecordStorageError("list_conversations")
		return []*models.ConversationSummary{}
	}
	if summaries == nil {
		return []*models.ConversationSummary{}
	}
	return summaries
}

func (a *Adapter) MessagesOf(ctx context.Context, conversationID int64) []*models.Message {
	messages, err := a.store.GetMessages(ctx, conversationID)
	if err != nil {
		a.logger.Error("Failed to retrieve conversation messages",
			zap.Error(err),
			zap.Int64("conversation_id", conversationID))
		a.metrics.RecordStorageError("get_messages")
		return []*models.Message{}
	}
	if messages == nil {
		return []*models.Message{}
	}
	return messages
}
