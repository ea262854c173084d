package db

import "time"

// Conversation represents a chat conversation
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	AgentType string    `json:"agent_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Archived  bool      `json:"archived"`
}

// ConversationSummary is a conversation row annotated for listing: a
// truncated preview of its most recent message and the total message count,
// both computed at read time.
type ConversationSummary struct {
	Conversation
	Preview      string `json:"preview"`
	MessageCount int    `json:"message_count"`
}

// Message represents a single message in a conversation
type Message struct {
	ID             int64          `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"` // "user", "assistant" or "system"
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ProviderConfig represents a stored AI provider configuration. APIKey is
// obfuscated at rest and returned in the clear by store reads.
type ProviderConfig struct {
	Name     string            `json:"name"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	IsActive bool              `json:"is_active"`
	Extra    map[string]string `json:"extra,omitempty"`
}
