package llm

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider implements the Provider interface for OpenRouter. The
// wire protocol is OpenAI-compatible, so it reuses the OpenAI client with a
// different base URL and the app-identification headers OpenRouter expects.
type OpenRouterProvider struct {
	OpenAIProvider
}

// NewOpenRouterProvider creates a new OpenRouter provider
func NewOpenRouterProvider(config Config) *OpenRouterProvider {
	if config.BaseURL == "" {
		config.BaseURL = openRouterBaseURL
	}
	if config.AppName == "" {
		config.AppName = "HexStrike-Nexus"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Transport: &appHeaderTransport{appName: config.AppName},
	}

	applyDefaults(&config, "anthropic/claude-3.5-sonnet", 4000)

	return &OpenRouterProvider{OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		name:   "openrouter",
	}}
}

// AvailableModels queries the OpenRouter models endpoint, which lists every
// routed model, so no chat-model filtering is applied.
func (p *OpenRouterProvider) AvailableModels(ctx context.Context) []string {
	list, err := p.client.ListModels(ctx)
	if err != nil || len(list.Models) == 0 {
		return []string{
			"anthropic/claude-3.5-sonnet",
			"anthropic/claude-3-opus",
			"openai/gpt-4-turbo",
			"openai/gpt-4o",
			"google/gemini-pro",
			"meta-llama/llama-3.1-70b-instruct",
		}
	}

	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	return models
}

// appHeaderTransport injects the attribution headers OpenRouter uses to
// identify calling applications.
type appHeaderTransport struct {
	appName string
}

func (t *appHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("HTTP-Referer", "https://github.com/hexstrike-nexus")
	req.Header.Set("X-Title", t.appName)
	return http.DefaultTransport.RoundTrip(req)
}
