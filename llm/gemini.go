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

// GeminiProvider implements the Provider interface for Google Gemini
type GeminiProvider struct {
	apiKey  string
	baseURL string
	config  Config
	client  *http.Client
}

// geminiContent represents one turn in Gemini's format. The role vocabulary
// is "user" and "model"; there is no system slot in this integration.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(config Config) *GeminiProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	applyDefaults(&config, "gemini-1.5-flash", 8192)

	return &GeminiProvider{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		config:  config,
		client:  &http.Client{},
	}
}

// Chat implements non-streaming chat
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	return p.chat(ctx, messages, systemPrompt, p.config.MaxTokens)
}

func (p *GeminiProvider) chat(ctx context.Context, messages []Message, systemPrompt string, maxTokens int) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.config.Model, p.apiKey)

	resp, err := p.send(ctx, url, geminiRequest{
		Contents: toGeminiContents(messages, systemPrompt),
		GenerationConfig: geminiGenConfig{
			Temperature:     p.config.Temperature,
			MaxOutputTokens: maxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", protocolErr(p.Name(), err)
	}

	if len(result.Candidates) == 0 {
		return "", protocolErr(p.Name(), errors.New("no candidates in response"))
	}

	text := joinParts(result.Candidates[0].Content.Parts)
	if text == "" {
		return "", protocolErr(p.Name(), errors.New("no content in response"))
	}

	return text, nil
}

// StreamChat implements streaming chat
func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message, systemPrompt string) (<-chan StreamResponse, error) {
	responseChan := make(chan StreamResponse)

	req := geminiRequest{
		Contents: toGeminiContents(messages, systemPrompt),
		GenerationConfig: geminiGenConfig{
			Temperature:     p.config.Temperature,
			MaxOutputTokens: p.config.MaxTokens,
		},
	}

	go func() {
		defer close(responseChan)

		if err := p.streamRequest(ctx, req, responseChan); err != nil {
			responseChan <- StreamResponse{Error: err}
		}
	}()

	return responseChan, nil
}

func (p *GeminiProvider) streamRequest(ctx context.Context, req geminiRequest, responseChan chan<- StreamResponse) error {
	// alt=sse switches the endpoint from a JSON array body to SSE framing
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, p.config.Model, p.apiKey)

	resp, err := p.send(ctx, url, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "" {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed events
			continue
		}

		if len(chunk.Candidates) > 0 {
			if text := joinParts(chunk.Candidates[0].Content.Parts); text != "" {
				responseChan <- StreamResponse{Content: text}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return transportErr(p.Name(), fmt.Errorf("stream read: %w", err))
	}

	responseChan <- StreamResponse{Done: true}
	return nil
}

func (p *GeminiProvider) send(ctx context.Context, url string, req geminiRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
func (p *GeminiProvider) ValidateConnection(ctx context.Context) bool {
	reply, err := p.chat(ctx, []Message{{Role: "user", Content: "Hi"}}, "", probeMaxTokens)
	return err == nil && reply != ""
}

// AvailableModels returns the known Gemini models
func (p *GeminiProvider) AvailableModels(ctx context.Context) []string {
	return []string{
		"gemini-1.5-pro-latest",
		"gemini-1.5-flash-latest",
		"gemini-pro",
		"gemini-pro-vision",
	}
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string { return "gemini" }

// Model returns the configured model
func (p *GeminiProvider) Model() string { return p.config.Model }

// toGeminiContents converts canonical messages to Gemini's turn format.
// "assistant" maps to "model" and system-role turns become user turns with a
// "System: " prefix. A separate system prompt is injected as a leading
// synthetic user/model exchange because the API has no system slot here.
func toGeminiContents(messages []Message, systemPrompt string) []geminiContent {
	var contents []geminiContent

	if systemPrompt != "" {
		contents = append(contents,
			geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: "System instructions: " + systemPrompt}},
			},
			geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: "Understood. I will follow these instructions."}},
			},
		)
	}

	for _, msg := range messages {
		role := msg.Role
		content := msg.Content

		switch role {
		case "assistant":
			role = "model"
		case "system":
			role = "user"
			content = "System: " + content
		}

		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: content}},
		})
	}

	return contents
}

// joinParts concatenates the text of every part of a candidate
func joinParts(parts []geminiPart) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.Text)
	}
	return b.String()
}
