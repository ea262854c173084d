package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI and any
// API-compatible endpoint reachable through a base URL override.
type OpenAIProvider struct {
	client *openai.Client
	config Config
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	applyDefaults(&config, "gpt-4o", 4000)

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		name:   "openai",
	}
}

// applyDefaults fills in the request parameters the original dashboard used
// when the caller left them unset.
func applyDefaults(config *Config, model string, maxTokens int) {
	if config.Model == "" {
		config.Model = model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = maxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
}

// Chat implements non-streaming chat
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	return p.chat(ctx, messages, systemPrompt, p.config.MaxTokens)
}

func (p *OpenAIProvider) chat(ctx context.Context, messages []Message, systemPrompt string, maxTokens int) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    toOpenAIMessages(messages, systemPrompt),
		MaxTokens:   maxTokens,
		Temperature: float32(p.config.Temperature),
	})
	if err != nil {
		return "", transportErr(p.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", protocolErr(p.name, errors.New("no choices in response"))
	}

	return resp.Choices[0].Message.Content, nil
}

// StreamChat implements streaming chat
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message, systemPrompt string) (<-chan StreamResponse, error) {
	responseChan := make(chan StreamResponse)

	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    toOpenAIMessages(messages, systemPrompt),
		MaxTokens:   p.config.MaxTokens,
		Temperature: float32(p.config.Temperature),
		Stream:      true,
	}

	go func() {
		defer close(responseChan)

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			responseChan <- StreamResponse{Error: transportErr(p.name, err)}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				responseChan <- StreamResponse{Done: true}
				return
			}
			if err != nil {
				responseChan <- StreamResponse{Error: transportErr(p.name, fmt.Errorf("stream: %w", err))}
				return
			}

			if len(response.Choices) > 0 {
				if content := response.Choices[0].Delta.Content; content != "" {
					responseChan <- StreamResponse{Content: content}
				}
			}
		}
	}()

	return responseChan, nil
}

// ValidateConnection sends a minimal probe request
func (p *OpenAIProvider) ValidateConnection(ctx context.Context) bool {
	reply, err := p.chat(ctx, []Message{{Role: "user", Content: "Hi"}}, "", probeMaxTokens)
	return err == nil && reply != ""
}

// AvailableModels queries the live models endpoint, filtered to chat models
func (p *OpenAIProvider) AvailableModels(ctx context.Context) []string {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return []string{"gpt-4o", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}
	}

	var models []string
	for _, m := range list.Models {
		if strings.Contains(strings.ToLower(m.ID), "gpt") {
			models = append(models, m.ID)
		}
	}
	if len(models) == 0 {
		return []string{"gpt-4o", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}
	}
	return models
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the configured model
func (p *OpenAIProvider) Model() string { return p.config.Model }

// probeMaxTokens caps the output of connection-validation requests.
const probeMaxTokens = 10

// toOpenAIMessages converts canonical messages, injecting the system prompt as
// the leading system-role message.
func toOpenAIMessages(messages []Message, systemPrompt string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return out
}
