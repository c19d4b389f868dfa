package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/rex/internal/models"
)

// MemoryStorage keeps everything in process memory. Returned values are
// copies, so callers never alias stored rows.
type MemoryStorage struct {
	mu sync.RWMutex

	nextID        int64
	conversations map[int64]*models.Conversation
	messages      map[int64][]*models.Message
	settings      map[string]*models.Setting
	guidelines    map[string]*models.Guideline
	reflections   map[int64]*models.Reflection

	now func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64][]*models.Message),
		settings:      make(map[string]*models.Setting),
		guidelines:    make(map[string]*models.Guideline),
		reflections:   make(map[int64]*models.Reflection),
		now:           time.Now,
	}
}

func (s *MemoryStorage) id() int64 {
	s.nextID++
	return s.nextID
}

// Conversation methods

func (s *MemoryStorage) CreateConversation(ctx context.Context, username string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &models.Conversation{
		ID:        s.id(),
		Username:  username,
		CreatedAt: s.now(),
	}
	s.conversations[conv.ID] = conv

	out := *conv
	return &out, nil
}

func (s *MemoryStorage) AddMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[msg.ConversationID]; !exists {
		return fmt.Errorf("conversation %d: %w", msg.ConversationID, ErrNotFound)
	}

	stored := *msg
	stored.ID = s.id()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = s.now()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &stored)

	msg.ID = stored.ID
	msg.Timestamp = stored.Timestamp
	return nil
}

func matchUsername(stored, wanted string, mode MatchMode) bool {
	stored, wanted = strings.ToLower(stored), strings.ToLower(wanted)
	if mode == MatchSubstring {
		return strings.Contains(stored, wanted)
	}
	return stored == wanted
}

func (s *MemoryStorage) FindConversations(ctx context.Context, username string, mode MatchMode, limit int) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Conversation
	for _, conv := range s.conversations {
		if matchUsername(conv.Username, username, mode) {
			c := *conv
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStorage) ListConversations(ctx context.Context) ([]*models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ConversationSummary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		result = append(result, &models.ConversationSummary{
			ID:           conv.ID,
			Username:     conv.Username,
			CreatedAt:    conv.CreatedAt,
			MessageCount: len(s.messages[conv.ID]),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (s *MemoryStorage) GetMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[conversationID]
	result := make([]*models.Message, 0, len(stored))
	for _, msg := range stored {
		m := *msg
		result = append(result, &m)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Setting methods

func (s *MemoryStorage) GetSettings(ctx context.Context) ([]*models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		st := *setting
		result = append(result, &st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s *MemoryStorage) UpsertSettings(ctx context.Context, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, value := range settings {
		s.settings[key] = &models.Setting{Key: key, Value: value, UpdatedAt: now}
	}
	return nil
}

// Guideline methods

func (s *MemoryStorage) ListGuidelines(ctx context.Context) ([]*models.Guideline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Guideline, 0, len(s.guidelines))
	for _, g := range s.guidelines {
		gl := *g
		result = append(result, &gl)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s *MemoryStorage) UpsertGuidelines(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, value := range values {
		if existing, ok := s.guidelines[key]; ok {
			existing.Value = value
			existing.UpdatedAt = now
			continue
		}
		s.guidelines[key] = &models.Guideline{Key: key, Value: value, UpdatedAt: now}
	}
	return nil
}

func (s *MemoryStorage) CreateGuideline(ctx context.Context, g *models.Guideline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.guidelines[g.Key]; exists {
		return fmt.Errorf("guideline %q: %w", g.Key, ErrAlreadyExists)
	}
	stored := *g
	stored.UpdatedAt = s.now()
	s.guidelines[g.Key] = &stored
	return nil
}

func (s *MemoryStorage) UpdateGuideline(ctx context.Context, g *models.Guideline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.guidelines[g.Key]
	if !exists {
		return fmt.Errorf("guideline %q: %w", g.Key, ErrNotFound)
	}
	existing.Value = g.Value
	existing.Description = g.Description
	existing.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStorage) DeleteGuideline(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.guidelines[key]; !exists {
		return fmt.Errorf("guideline %q: %w", key, ErrNotFound)
	}
	delete(s.guidelines, key)
	return nil
}

func (s *MemoryStorage) SeedGuidelines(ctx context.Context, guidelines []*models.Guideline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, g := range guidelines {
		if _, exists := s.guidelines[g.Key]; exists {
			continue
		}
		stored := *g
		stored.UpdatedAt = now
		s.guidelines[g.Key] = &stored
	}
	return nil
}

// Reflection methods

func (s *MemoryStorage) ListReflections(ctx context.Context, filter ReflectionFilter) ([]*models.Reflection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Reflection
	for _, r := range s.reflections {
		if filter.PublishedOnly && !r.Published {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		ref := *r
		result = append(result, &ref)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *MemoryStorage) CreateReflection(ctx context.Context, r *models.Reflection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := *r
	stored.ID = s.id()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.reflections[stored.ID] = &stored

	r.ID = stored.ID
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (s *MemoryStorage) UpdateReflection(ctx context.Context, patch *models.ReflectionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.reflections[patch.ID]
	if !exists {
		return fmt.Errorf("reflection %d: %w", patch.ID, ErrNotFound)
	}
	patch.Apply(existing)
	existing.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStorage) DeleteReflection(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reflections[id]; !exists {
		return fmt.Errorf("reflection %d: %w", id, ErrNotFound)
	}
	delete(s.reflections, id)
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
