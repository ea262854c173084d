package llm

import (
	"fmt"
	"sync"
)

// Kind identifies one of the supported provider implementations. The set is
// closed: adapters are selected through this enum, not a name-to-class table.
type Kind int

const (
	KindOpenAI Kind = iota
	KindOpenRouter
	KindAnthropic
	KindGemini
)

var kindNames = map[Kind]string{
	KindOpenAI:     "openai",
	KindOpenRouter: "openrouter",
	KindAnthropic:  "anthropic",
	KindGemini:     "gemini",
}

func (k Kind) String() string { return kindNames[k] }

// ParseKind maps a provider identifier to its Kind. Unknown identifiers are
// rejected with an error naming the offender.
func ParseKind(name string) (Kind, error) {
	for kind, n := range kindNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown provider: %s", name)
}

// Kinds returns every supported provider identifier
func Kinds() []string {
	return []string{"openai", "openrouter", "anthropic", "gemini"}
}

// New constructs the adapter for the given kind
func New(kind Kind, config Config) Provider {
	switch kind {
	case KindOpenRouter:
		return NewOpenRouterProvider(config)
	case KindAnthropic:
		return NewAnthropicProvider(config)
	case KindGemini:
		return NewGeminiProvider(config)
	default:
		return NewOpenAIProvider(config)
	}
}

// ConfigStore persists provider configuration. Implemented by db.Store.
type ConfigStore interface {
	SaveProviderConfig(name, apiKey, model string, isActive bool, extra map[string]string) error
}

// Registry holds the single active provider and keeps activation and
// persistence in one operation so they cannot diverge.
type Registry struct {
	store ConfigStore

	mu     sync.RWMutex
	active Provider
}

// NewRegistry creates a registry backed by the given config store
func NewRegistry(store ConfigStore) *Registry {
	return &Registry{store: store}
}

// Activate constructs the adapter for the named provider, records it as the
// active provider configuration and makes it the registry's active adapter.
func (r *Registry) Activate(name, apiKey, model string, extra map[string]string) (Provider, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}

	config := Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: extra["base_url"],
		AppName: extra["app_name"],
	}
	provider := New(kind, config)

	if err := r.store.SaveProviderConfig(name, apiKey, provider.Model(), true, extra); err != nil {
		return nil, fmt.Errorf("failed to persist provider config: %w", err)
	}

	r.mu.Lock()
	r.active = provider
	r.mu.Unlock()

	return provider, nil
}

// Active returns the currently active adapter, if any
func (r *Registry) Active() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.active != nil
}

// ActiveInfo returns the display identity of the active provider for status
// surfaces: its name and configured model.
func (r *Registry) ActiveInfo() (name, model string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return "", "", false
	}
	return r.active.Name(), r.active.Model(), true
}
