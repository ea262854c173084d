package utils

import (
	"path/filepath"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	original := &Config{
		Providers: map[string]ProviderDefaults{
			"openai": {DisplayName: "OpenAI", DefaultModel: "gpt-4o"},
		},
		Data:   DataConfig{DBPath: filepath.Join(t.TempDir(), "nexus.db")},
		Server: ServerConfig{URL: "http://localhost:9999"},
		Debug:  true,
	}
	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Server.URL != "http://localhost:9999" {
		t.Errorf("server URL lost: %q", loaded.Server.URL)
	}
	if loaded.Providers["openai"].DefaultModel != "gpt-4o" {
		t.Errorf("provider defaults lost: %+v", loaded.Providers)
	}
	if !loaded.Debug {
		t.Error("debug flag lost")
	}
}

func TestLoadConfigDefaultsServerURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SaveConfig(path, &Config{}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Server.URL != "http://localhost:8888" {
		t.Errorf("expected default server URL, got %q", loaded.Server.URL)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestExpandPathAbsolute(t *testing.T) {
	got := expandPath("./relative/db.sqlite")
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}
}
