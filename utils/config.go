package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	Providers map[string]ProviderDefaults `json:"ai_providers"`
	Data      DataConfig                  `json:"data"`
	Server    ServerConfig                `json:"server"`
	Debug     bool                        `json:"debug"`
}

// ProviderDefaults holds per-provider connection defaults. Credentials are
// not kept here; they live obfuscated in the conversation store.
type ProviderDefaults struct {
	DisplayName  string   `json:"display_name,omitempty"`
	BaseURL      string   `json:"base_url,omitempty"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models,omitempty"`
	AppName      string   `json:"app_name,omitempty"`
}

// DataConfig represents data storage configuration
type DataConfig struct {
	DBPath string `json:"db_path"`
}

// ServerConfig points at the HexStrike automation server
type ServerConfig struct {
	URL string `json:"url"`
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Data.DBPath != "" {
		config.Data.DBPath = expandPath(config.Data.DBPath)
	}
	if config.Server.URL == "" {
		config.Server.URL = "http://localhost:8888"
	}

	return &config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(configPath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ and relative paths
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		return absPath
	}

	return path
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "./config/default.json"
	}

	return filepath.Join(configDir, "hexstrike-nexus", "config.json")
}

// EnsureDefaultConfig creates a default config file if it doesn't exist
func EnsureDefaultConfig() (string, error) {
	configPath := GetConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	defaultConfig := &Config{
		Providers: map[string]ProviderDefaults{
			"openai": {
				DisplayName:  "OpenAI",
				BaseURL:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o",
				Models:       []string{"gpt-4o", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"},
			},
			"openrouter": {
				DisplayName:  "OpenRouter",
				BaseURL:      "https://openrouter.ai/api/v1",
				DefaultModel: "anthropic/claude-3.5-sonnet",
				AppName:      "HexStrike-Nexus",
			},
			"anthropic": {
				DisplayName:  "Anthropic",
				BaseURL:      "https://api.anthropic.com/v1",
				DefaultModel: "claude-3-5-sonnet-20241022",
				Models: []string{
					"claude-3-5-sonnet-20241022",
					"claude-3-opus-20240229",
					"claude-3-sonnet-20240229",
					"claude-3-haiku-20240307",
				},
			},
			"gemini": {
				DisplayName:  "Gemini",
				BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
				DefaultModel: "gemini-1.5-flash",
				Models: []string{
					"gemini-1.5-pro-latest",
					"gemini-1.5-flash-latest",
					"gemini-pro",
				},
			},
		},
		Data: DataConfig{
			DBPath: "./data/hexstrike_nexus.db",
		},
		Server: ServerConfig{
			URL: "http://localhost:8888",
		},
	}

	if err := SaveConfig(configPath, defaultConfig); err != nil {
		return "", err
	}

	return configPath, nil
}
