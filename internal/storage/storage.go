package storage

import (
	"context"
	"errors"

	"github.com/xaenox/rex/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// MatchMode selects how a display name is compared when looking up
// conversations. Both modes are case-insensitive.
type MatchMode string

const (
	MatchExact     MatchMode = "exact"
	MatchSubstring MatchMode = "substring"
)

type Storage interface {
	ConversationStore
	SettingStore
	GuidelineStore
	ReflectionStore
	Close() error
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, username string) (*models.Conversation, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	// FindConversations returns conversations for username, newest first,
	// without messages. limit <= 0 means no limit.
	FindConversations(ctx context.Context, username string, mode MatchMode, limit int) ([]*models.Conversation, error)
	ListConversations(ctx context.Context) ([]*models.ConversationSummary, error)
	// GetMessages returns messages ordered by timestamp ascending.
	GetMessages(ctx context.Context, conversationID int64) ([]*models.Message, error)
}

type SettingStore interface {
	GetSettings(ctx context.Context) ([]*models.Setting, error)
	UpsertSettings(ctx context.Context, settings map[string]string) error
}

type GuidelineStore interface {
	ListGuidelines(ctx context.Context) ([]*models.Guideline, error)
	// UpsertGuidelines writes all values in one transaction. Descriptions of
	// existing rows are kept.
	UpsertGuidelines(ctx context.Context, values map[string]string) error
	CreateGuideline(ctx context.Context, g *models.Guideline) error
	UpdateGuideline(ctx context.Context, g *models.Guideline) error
	DeleteGuideline(ctx context.Context, key string) error
	// SeedGuidelines inserts rows whose keys are missing and leaves existing
	// rows untouched.
	SeedGuidelines(ctx context.Context, guidelines []*models.Guideline) error
}

type ReflectionFilter struct {
	Type          models.ReflectionType
	PublishedOnly bool
	Limit         int
}

type ReflectionStore interface {
	// ListReflections returns reflections newest first.
	ListReflections(ctx context.Context, filter ReflectionFilter) ([]*models.Reflection, error)
	CreateReflection(ctx context.Context, r *models.Reflection) error
	UpdateReflection(ctx context.Context, patch *models.ReflectionPatch) error
	DeleteReflection(ctx context.Context, id int64) error
}
