package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a chat thread keyed by a free-text display name.
type Conversation struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  []*Message `json:"messages,omitempty"`
}

// ConversationSummary is a conversation without message bodies, used for
// thread resolution and the admin listing.
type ConversationSummary struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Message is a single append-only chat entry.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	EmotionalTone  string    `json:"emotional_tone"`
	Timestamp      time.Time `json:"timestamp"`
}
