// Package chat runs one conversational turn: heuristics, conversation
// resolution, prompt assembly, generation and persistence.
package chat

import (
	"context"
	"strings"

	"github.com/xaenox/rex/internal/classifier"
	"github.com/xaenox/rex/internal/conversation"
	"github.com/xaenox/rex/internal/generation"
	"github.com/xaenox/rex/internal/guidelines"
	"github.com/xaenox/rex/internal/metrics"
	"github.com/xaenox/rex/internal/models"
	"github.com/xaenox/rex/internal/prompt"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap"
)

const (
	// AdminTrigger opens the admin login when sent as the whole message.
	AdminTrigger     = "heyopenhereiam"
	AdminAccessReply = "Admin panel access requested. Please provide credentials."

	AnonymousName = "Anonymous"
	ReplyTone     = "matching"
)

type Request struct {
	Message        string `json:"message"`
	Username       string `json:"username,omitempty"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

type Reply struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	AdminRequest   bool   `json:"admin_request,omitempty"`
	FollowUp       string `json:"follow_up,omitempty"`
}

type Config struct {
	AssistantName string
	HistoryLimit  int
	ReflectionCap int
}

type Service struct {
	config        Config
	conversations *conversation.Adapter
	guidelines    *guidelines.Adapter
	reflections   storage.ReflectionStore
	builder       *prompt.Builder
	generator     generation.Generator
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewService(
	config Config,
	conversations *conversation.Adapter,
	guides *guidelines.Adapter,
	reflections storage.ReflectionStore,
	builder *prompt.Builder,
	generator generation.Generator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if config.AssistantName == "" {
		config.AssistantName = prompt.DefaultPersona.Name
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 3
	}
	if config.ReflectionCap <= 0 {
		config.ReflectionCap = 5
	}
	return &Service{
		config:        config,
		conversations: conversations,
		guidelines:    guides,
		reflections:   reflections,
		builder:       builder,
		generator:     generator,
		metrics:       m,
		logger:        logger,
	}
}

// IsAdminTrigger reports whether message is the admin trigger phrase,
// ignoring case and surrounding whitespace.
func IsAdminTrigger(message string) bool {
	return strings.ToLower(strings.TrimSpace(message)) == AdminTrigger
}

// Handle answers one message. It always returns a reply; storage and
// generation failures degrade the reply instead of failing the turn.
func (s *Service) Handle(ctx context.Context, req Request) Reply {
	if IsAdminTrigger(req.Message) {
		s.logger.Info("Admin panel access requested")
		return Reply{Message: AdminAccessReply, AdminRequest: true}
	}

	if strings.TrimSpace(req.Message) == "" {
		return Reply{Message: generation.ApologyInvalidInput, ConversationID: req.ConversationID}
	}

	tone := classifier.ClassifyTone(req.Message)
	greeting, _ := classifier.DetectGreeting(req.Message)
	language := classifier.DetectLanguage(req.Message)
	displayName := s.resolveName(req)
	s.metrics.RecordChatTurn(string(tone), string(language))

	storedName := displayName
	if storedName == "" {
		storedName = AnonymousName
	}

	var history []*models.Conversation
	if displayName != "" {
		history = s.conversations.HistoryFor(ctx, displayName, s.config.HistoryLimit)
	}

	conversationID := s.resolveConversation(ctx, req, displayName, storedName)

	s.logger.Info("Processing chat message",
		zap.String("tone", string(tone)),
		zap.String("language", string(language)),
		zap.String("greeting", greeting),
		zap.String("username", storedName),
		zap.Int("history", len(history)))

	if conversationID != nil {
		s.conversations.AppendMessage(ctx, *conversationID, storedName, models.RoleUser, req.Message, string(tone))
	}

	text := s.generator.Generate(ctx, s.builder.Build(prompt.Input{
		Message:       req.Message,
		DisplayName:   displayName,
		Tone:          string(tone),
		GreetingStyle: greeting,
		History:       history,
		Snapshot:      s.guidelines.Snapshot(ctx, true),
		Reflections:   s.loadReflections(ctx),
	}))

	if conversationID != nil {
		s.conversations.AppendMessage(ctx, *conversationID, s.config.AssistantName, models.RoleAssistant, text, ReplyTone)
	}

	return Reply{
		Message:        text,
		ConversationID: conversationID,
		FollowUp:       classifier.PickFollowUp(tone),
	}
}

// resolveName prefers the name supplied by the client and falls back to one
// guessed from the message. Empty means unknown.
func (s *Service) resolveName(req Request) string {
	name := strings.TrimSpace(req.Username)
	if name != "" && !strings.EqualFold(name, AnonymousName) {
		return name
	}
	if extracted, ok := classifier.ExtractUsername(req.Message); ok {
		return extracted
	}
	return ""
}

// resolveConversation returns the explicit id, else the most recent
// conversation of a known speaker, else a new conversation. Nil means the
// turn runs without persistence.
func (s *Service) resolveConversation(ctx context.Context, req Request, displayName, storedName string) *int64 {
	if req.ConversationID != nil {
		id := *req.ConversationID
		return &id
	}

	if displayName != "" {
		if existing := s.conversations.ConversationsMatching(ctx, displayName); len(existing) > 0 {
			id := existing[0].ID
			return &id
		}
	}

	id, ok := s.conversations.CreateConversation(ctx, storedName)
	if !ok {
		return nil
	}
	return &id
}

func (s *Service) loadReflections(ctx context.Context) []*models.Reflection {
	if s.reflections == nil {
		return nil
	}
	reflections, err := s.reflections.ListReflections(ctx, storage.ReflectionFilter{Limit: s.config.ReflectionCap})
	if err != nil {
		s.logger.Error("Failed to load reflections", zap.Error(err))
		s.metrics.RecordStorageError("list_reflections")
		return nil
	}
	return reflections
}

// Greeting returns the configured welcome text.
func (s *Service) Greeting(ctx context.Context) string {
	settings := s.guidelines.Settings(ctx, false)
	if text := settings[guidelines.KeyGreetingText]; text != "" {
		return text
	}
	return guidelines.DefaultSettings[guidelines.KeyGreetingText]
}
