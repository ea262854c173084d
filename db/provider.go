package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SaveProviderConfig stores a provider configuration, obfuscating the API key
// at rest. When isActive is set, every other provider is deactivated in the
// same transaction so at most one configuration is ever active.
func (s *Store) SaveProviderConfig(name, apiKey, model string, isActive bool, extra map[string]string) error {
	encodedKey, err := s.codec.Encode(apiKey)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	var encodedExtra string
	if len(extra) > 0 {
		data, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("failed to encode provider config: %w", err)
		}
		encodedExtra = string(data)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if isActive {
		if _, err := tx.Exec("UPDATE ai_providers SET is_active = 0"); err != nil {
			return fmt.Errorf("failed to deactivate providers: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO ai_providers (name, api_key, model, is_active, config) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET api_key = excluded.api_key, model = excluded.model,
		 is_active = excluded.is_active, config = excluded.config`,
		name, encodedKey, model, isActive, encodedExtra,
	); err != nil {
		return fmt.Errorf("failed to save provider config: %w", err)
	}

	return tx.Commit()
}

// GetActiveProvider returns the active provider configuration with its
// credential decoded, or nil when no provider is active.
func (s *Store) GetActiveProvider() (*ProviderConfig, error) {
	cfg, err := s.scanProvider(s.conn.QueryRow(
		"SELECT name, api_key, model, is_active, config FROM ai_providers WHERE is_active = 1",
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

// GetProviderConfig returns the stored configuration for a provider by name
func (s *Store) GetProviderConfig(name string) (*ProviderConfig, error) {
	cfg, err := s.scanProvider(s.conn.QueryRow(
		"SELECT name, api_key, model, is_active, config FROM ai_providers WHERE name = ?", name,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}
	return cfg, err
}

// ListProviderConfigs returns every stored provider configuration
func (s *Store) ListProviderConfigs() ([]*ProviderConfig, error) {
	rows, err := s.conn.Query("SELECT name, api_key, model, is_active, config FROM ai_providers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list provider configs: %w", err)
	}
	defer rows.Close()

	var configs []*ProviderConfig
	for rows.Next() {
		cfg, err := s.scanProvider(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func (s *Store) scanProvider(row scannable) (*ProviderConfig, error) {
	var cfg ProviderConfig
	var encodedKey, encodedExtra string
	if err := row.Scan(&cfg.Name, &encodedKey, &cfg.Model, &cfg.IsActive, &encodedExtra); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan provider config: %w", err)
	}

	apiKey, err := s.codec.Decode(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	cfg.APIKey = apiKey

	if encodedExtra != "" {
		if err := json.Unmarshal([]byte(encodedExtra), &cfg.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode provider config: %w", err)
		}
	}

	return &cfg, nil
}
