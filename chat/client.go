// Package chat is the conversation orchestrator: it turns a user message plus
// stored history into a provider request, runs embedded hexstrike actions on
// the reply and persists the final transcript.
package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hexstrike/nexus/db"
	"github.com/hexstrike/nexus/llm"
)

// historyLimit is the hard context-window cap: at most this many of the most
// recent messages are sent to the provider, oldest first.
const historyLimit = 50

// NoProviderWarning is returned when a message is sent before any provider is
// configured. It is surfaced to the caller but never stored as a message.
const NoProviderWarning = "⚠️ No AI provider configured. Please configure an AI provider in Settings."

// Client orchestrates conversation sends. Concurrent sends to the same
// conversation are serialized by a per-conversation lock so the transcript
// stays append-ordered.
type Client struct {
	store      *db.Store
	registry   *llm.Registry
	dispatcher *Dispatcher
	prompts    *PromptCatalog
	logger     *zap.Logger

	mu        sync.Mutex
	convLocks map[string]*convLock
}

// convLock is reference-counted so its map entry can be evicted once the last
// sender releases it; without that the map grows with every conversation ever
// touched.
type convLock struct {
	sync.Mutex
	refs int
}

// NewClient creates a conversation orchestrator
func NewClient(store *db.Store, registry *llm.Registry, dispatcher *Dispatcher, prompts *PromptCatalog, logger *zap.Logger) *Client {
	return &Client{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		prompts:    prompts,
		logger:     logger,
		convLocks:  make(map[string]*convLock),
	}
}

func (c *Client) lockConversation(id string) *convLock {
	c.mu.Lock()
	lock, ok := c.convLocks[id]
	if !ok {
		lock = &convLock{}
		c.convLocks[id] = lock
	}
	lock.refs++
	c.mu.Unlock()
	lock.Lock()
	return lock
}

func (c *Client) unlockConversation(id string, lock *convLock) {
	lock.Unlock()
	c.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(c.convLocks, id)
	}
	c.mu.Unlock()
}

// Send sends a user message in a conversation and returns the final assistant
// reply, with any hexstrike action results appended. The user message is
// stored before the provider is called so it survives provider failures; a
// provider failure is stored as a system message and returned as the error.
func (c *Client) Send(ctx context.Context, conversationID, text string) (string, error) {
	lock := c.lockConversation(conversationID)
	defer c.unlockConversation(conversationID, lock)

	conv, err := c.store.GetConversation(conversationID)
	if err != nil {
		return "", err
	}

	if _, err := c.store.AddMessage(conversationID, "user", text, nil); err != nil {
		return "", fmt.Errorf("failed to store user message: %w", err)
	}

	provider, ok := c.registry.Active()
	if !ok {
		return NoProviderWarning, nil
	}

	history, err := c.history(conversationID)
	if err != nil {
		return "", err
	}
	systemPrompt := c.prompts.PromptFor(conv.AgentType)

	reply, err := provider.Chat(ctx, history, systemPrompt)
	if err != nil {
		return "", c.recordFailure(conversationID, err)
	}

	processed := c.dispatcher.Process(ctx, reply)

	if _, err := c.store.AddMessage(conversationID, "assistant", processed, map[string]any{
		"model":    provider.Model(),
		"streamed": false,
	}); err != nil {
		return "", fmt.Errorf("failed to store assistant message: %w", err)
	}

	c.logger.Info("message completed",
		zap.String("conversation", conversationID),
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()))

	return processed, nil
}

// SendStream is Send's streaming variant: fragments are forwarded to the
// returned channel in transport order. Action results are emitted as one
// trailing fragment after the provider stream ends, and the complete
// processed reply is stored before the Done marker is sent.
func (c *Client) SendStream(ctx context.Context, conversationID, text string) (<-chan llm.StreamResponse, error) {
	lock := c.lockConversation(conversationID)

	conv, err := c.store.GetConversation(conversationID)
	if err != nil {
		c.unlockConversation(conversationID, lock)
		return nil, err
	}

	if _, err := c.store.AddMessage(conversationID, "user", text, nil); err != nil {
		c.unlockConversation(conversationID, lock)
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	provider, ok := c.registry.Active()
	if !ok {
		c.unlockConversation(conversationID, lock)
		return nil, llm.ErrNoActiveProvider
	}

	history, err := c.history(conversationID)
	if err != nil {
		c.unlockConversation(conversationID, lock)
		return nil, err
	}
	systemPrompt := c.prompts.PromptFor(conv.AgentType)

	upstream, err := provider.StreamChat(ctx, history, systemPrompt)
	if err != nil {
		c.unlockConversation(conversationID, lock)
		return nil, c.recordFailure(conversationID, err)
	}

	out := make(chan llm.StreamResponse)

	go func() {
		defer close(out)
		defer c.unlockConversation(conversationID, lock)

		var full string
		for chunk := range upstream {
			if chunk.Error != nil {
				out <- llm.StreamResponse{Error: c.recordFailure(conversationID, chunk.Error)}
				return
			}
			if chunk.Done {
				break
			}
			full += chunk.Content
			out <- llm.StreamResponse{Content: chunk.Content}
		}

		processed := c.dispatcher.Process(ctx, full)
		if processed != full {
			// action results were appended, emit them as a final fragment
			out <- llm.StreamResponse{Content: processed[len(full):]}
		}

		if _, err := c.store.AddMessage(conversationID, "assistant", processed, map[string]any{
			"model":    provider.Model(),
			"streamed": true,
		}); err != nil {
			c.logger.Error("failed to store streamed reply", zap.Error(err))
		}

		out <- llm.StreamResponse{Done: true}
	}()

	return out, nil
}

// recordFailure stores a provider error as a system message in the
// conversation and returns an error carrying the same text, so the caller and
// the transcript show one message. Errors are never retried; the transcript is
// the audit log.
func (c *Client) recordFailure(conversationID string, err error) error {
	wrapped := fmt.Errorf("⚠️ AI Error: %w", err)
	if _, storeErr := c.store.AddMessage(conversationID, "system", wrapped.Error(), nil); storeErr != nil {
		c.logger.Error("failed to record provider error", zap.Error(storeErr))
	}
	c.logger.Warn("provider call failed", zap.String("conversation", conversationID), zap.Error(err))
	return wrapped
}

func (c *Client) history(conversationID string) ([]llm.Message, error) {
	stored, err := c.store.GetMessages(conversationID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	history := make([]llm.Message, 0, len(stored))
	for _, msg := range stored {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return history, nil
}

// TestConnection probes the active provider and reports a user-facing status
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	provider, ok := c.registry.Active()
	if !ok {
		return false, "No AI provider configured"
	}
	if provider.ValidateConnection(ctx) {
		return true, fmt.Sprintf("Connection to %s successful!", provider.Name())
	}
	return false, "Connection failed - check API key"
}

const welcomeMessage = `# Welcome to HexStrike Nexus! 🎯

I am your AI security assistant backed by the HexStrike framework.

**What I can do:**
- Reconnaissance and subdomain enumeration
- Vulnerability scanning with 150+ security tools
- CVE research and exploit analysis
- CTF challenge support

Configure an AI provider in Settings, then tell me about your
authorized target and I will plan the engagement.

*Only test systems you have explicit permission to test.*`

// EnsureWelcomeConversation creates the first-boot welcome conversation with
// a canned greeting when the store holds no conversations yet.
func (c *Client) EnsureWelcomeConversation() (*db.Conversation, error) {
	count, err := c.store.CountConversations()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	conv, err := c.store.CreateConversation("Welcome to HexStrike Nexus", "General")
	if err != nil {
		return nil, err
	}
	if _, err := c.store.AddMessage(conv.ID, "assistant", welcomeMessage, nil); err != nil {
		return nil, err
	}

	c.logger.Info("created welcome conversation", zap.String("conversation", conv.ID))
	return conv, nil
}
