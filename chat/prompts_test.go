package chat

import (
	"strings"
	"testing"
)

func TestPromptCatalogLoads(t *testing.T) {
	catalog, err := NewPromptCatalog()
	if err != nil {
		t.Fatalf("NewPromptCatalog failed: %v", err)
	}

	for _, tag := range []string{
		"BugBountyWorkflowManager",
		"CTFWorkflowManager",
		"CVEIntelligenceManager",
		"AIExploitGenerator",
		"General",
	} {
		prompt := catalog.PromptFor(tag)
		if prompt == "" {
			t.Errorf("agent %s has no prompt", tag)
		}
		if !strings.Contains(prompt, "```hexstrike") {
			t.Errorf("agent %s prompt missing action block syntax", tag)
		}
	}

	if len(catalog.AgentTags()) != 5 {
		t.Errorf("expected 5 agents, got %d", len(catalog.AgentTags()))
	}
}

func TestPromptCatalogSpecializationDiffers(t *testing.T) {
	catalog, err := NewPromptCatalog()
	if err != nil {
		t.Fatalf("NewPromptCatalog failed: %v", err)
	}

	bounty := catalog.PromptFor("BugBountyWorkflowManager")
	ctf := catalog.PromptFor("CTFWorkflowManager")
	if bounty == ctf {
		t.Error("agent prompts should differ by specialization")
	}
}

func TestPromptCatalogUnknownTagFallsBack(t *testing.T) {
	catalog, err := NewPromptCatalog()
	if err != nil {
		t.Fatalf("NewPromptCatalog failed: %v", err)
	}

	if catalog.PromptFor("NoSuchAgent") != catalog.PromptFor("General") {
		t.Error("unknown tags should fall back to the default agent")
	}
	if catalog.AgentName("NoSuchAgent") != catalog.AgentName("General") {
		t.Error("unknown tags should fall back to the default agent name")
	}
}
