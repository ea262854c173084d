package chat

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed agents.yaml
var agentsYAML []byte

// PromptCatalog maps agent tags to their system prompts. The catalog is
// loaded once from the embedded agents.yaml and immutable afterwards.
type PromptCatalog struct {
	prompts    map[string]string
	names      map[string]string
	defaultTag string
}

type catalogFile struct {
	Base    string `yaml:"base"`
	Default string `yaml:"default"`
	Agents  []struct {
		Tag            string `yaml:"tag"`
		Name           string `yaml:"name"`
		Specialization string `yaml:"specialization"`
	} `yaml:"agents"`
}

// NewPromptCatalog parses the embedded agent catalog
func NewPromptCatalog() (*PromptCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(agentsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent catalog: %w", err)
	}
	if file.Base == "" || len(file.Agents) == 0 {
		return nil, fmt.Errorf("agent catalog is incomplete")
	}

	catalog := &PromptCatalog{
		prompts:    make(map[string]string, len(file.Agents)),
		names:      make(map[string]string, len(file.Agents)),
		defaultTag: file.Default,
	}
	for _, agent := range file.Agents {
		catalog.prompts[agent.Tag] = file.Base + "\n" + agent.Specialization
		catalog.names[agent.Tag] = agent.Name
	}

	if _, ok := catalog.prompts[catalog.defaultTag]; !ok {
		return nil, fmt.Errorf("agent catalog default %q has no entry", catalog.defaultTag)
	}

	return catalog, nil
}

// PromptFor returns the system prompt for an agent tag, falling back to the
// default agent for unknown tags.
func (c *PromptCatalog) PromptFor(agentTag string) string {
	if prompt, ok := c.prompts[agentTag]; ok {
		return prompt
	}
	return c.prompts[c.defaultTag]
}

// AgentName returns the display name for an agent tag
func (c *PromptCatalog) AgentName(agentTag string) string {
	if name, ok := c.names[agentTag]; ok {
		return name
	}
	return c.names[c.defaultTag]
}

// AgentTags lists every known agent tag
func (c *PromptCatalog) AgentTags() []string {
	tags := make([]string, 0, len(c.prompts))
	for tag := range c.prompts {
		tags = append(tags, tag)
	}
	return tags
}
