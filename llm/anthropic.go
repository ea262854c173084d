package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements the Provider interface for Anthropic Claude
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	config  Config
	client  *http.Client
}

// anthropicRequest represents a request to the Anthropic messages API.
// The system prompt is a separate top-level field, not a message.
type anthropicRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	System      string    `json:"system,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) *AnthropicProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}

	applyDefaults(&config, "claude-3-5-sonnet-20241022", 4000)

	return &AnthropicProvider{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		config:  config,
		client:  &http.Client{},
	}
}

// Chat implements non-streaming chat
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	return p.chat(ctx, messages, systemPrompt, p.config.MaxTokens)
}

func (p *AnthropicProvider) chat(ctx context.Context, messages []Message, systemPrompt string, maxTokens int) (string, error) {
	resp, err := p.send(ctx, anthropicRequest{
		Model:       p.config.Model,
		Messages:    dropSystemMessages(messages),
		MaxTokens:   maxTokens,
		Temperature: p.config.Temperature,
		System:      systemPrompt,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", protocolErr(p.Name(), err)
	}

	if len(result.Content) == 0 {
		return "", protocolErr(p.Name(), errors.New("no content in response"))
	}

	return result.Content[0].Text, nil
}

// StreamChat implements streaming chat
func (p *AnthropicProvider) StreamChat(ctx context.Context, messages []Message, systemPrompt string) (<-chan StreamResponse, error) {
	responseChan := make(chan StreamResponse)

	req := anthropicRequest{
		Model:       p.config.Model,
		Messages:    dropSystemMessages(messages),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stream:      true,
		System:      systemPrompt,
	}

	go func() {
		defer close(responseChan)

		if err := p.streamRequest(ctx, req, responseChan); err != nil {
			responseChan <- StreamResponse{Error: err}
		}
	}()

	return responseChan, nil
}

func (p *AnthropicProvider) streamRequest(ctx context.Context, req anthropicRequest, responseChan chan<- StreamResponse) error {
	resp, err := p.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Read SSE stream. Termination is event-type based: content_block_delta
	// events carry fragments, message_stop ends the stream.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed events
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				responseChan <- StreamResponse{Content: event.Delta.Text}
			}
		case "message_stop":
			responseChan <- StreamResponse{Done: true}
			return nil
		case "error":
			// a well-formed reply reporting a server-side condition, not a
			// transport failure
			return protocolErr(p.Name(), fmt.Errorf("stream error: %s", data))
		}
	}

	if err := scanner.Err(); err != nil {
		return transportErr(p.Name(), fmt.Errorf("stream read: %w", err))
	}

	responseChan <- StreamResponse{Done: true}
	return nil
}

func (p *AnthropicProvider) send(ctx context.Context, req anthropicRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportErr(p.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, transportErr(p.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	return resp, nil
}

// ValidateConnection sends a minimal probe request
func (p *AnthropicProvider) ValidateConnection(ctx context.Context) bool {
	reply, err := p.chat(ctx, []Message{{Role: "user", Content: "Hi"}}, "", probeMaxTokens)
	return err == nil && reply != ""
}

// AvailableModels returns the known Claude models. Anthropic has no public
// models endpoint in this integration.
func (p *AnthropicProvider) AvailableModels(ctx context.Context) []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-opus-20240229",
		"claude-3-sonnet-20240229",
		"claude-3-haiku-20240307",
	}
}

// Name returns the provider identifier
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Model returns the configured model
func (p *AnthropicProvider) Model() string { return p.config.Model }

// dropSystemMessages filters out system-role turns; Anthropic accepts only
// user and assistant roles inside the messages array.
func dropSystemMessages(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != "system" {
			out = append(out, msg)
		}
	}
	return out
}
