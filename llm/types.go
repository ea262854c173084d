package llm

import "context"

// Message represents a chat message in the canonical format shared by all providers
type Message struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// StreamResponse represents a chunk of streaming response
type StreamResponse struct {
	Content string
	Done    bool
	Error   error
}

// Provider interface defines the common interface for all AI providers
type Provider interface {
	// Chat sends messages and returns the complete response (non-streaming)
	Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error)

	// StreamChat sends messages and returns a channel for streaming responses.
	// The channel is closed after the final chunk; concatenating every Content
	// fragment yields the same text Chat would have returned for the same input.
	StreamChat(ctx context.Context, messages []Message, systemPrompt string) (<-chan StreamResponse, error)

	// ValidateConnection issues a minimal probe request and reports whether a
	// non-empty reply was obtained. Any failure is reported as false.
	ValidateConnection(ctx context.Context) bool

	// AvailableModels returns model identifiers for this provider. Queries the
	// provider's models endpoint where one exists, otherwise returns a fixed
	// list. On any failure the fallback list is returned.
	AvailableModels(ctx context.Context) []string

	// Name returns the provider identifier
	Name() string

	// Model returns the configured model identifier
	Model() string
}

// Config represents provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	AppName     string // app-identifying header, only used by OpenRouter
}
