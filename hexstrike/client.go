// Package hexstrike is the HTTP client for the external HexStrike automation
// server. It only forwards target strings and reports results; no scanning
// logic lives on this side of the boundary.
package hexstrike

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	healthTimeout = 1 * time.Second
	callTimeout   = 5 * time.Second
)

// ResultCache stores analysis results keyed by target and analysis type.
// Implemented by db.Store.
type ResultCache interface {
	CacheResult(target, analysisType, resultJSON string) error
	GetCachedResult(target, analysisType string) (string, error)
}

// Client talks to the HexStrike automation server
type Client struct {
	baseURL string
	http    *http.Client
	cache   ResultCache
}

// NewClient creates a client for the automation server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// SetCache attaches a result cache; analysis results are then persisted and
// served from it before hitting the network.
func (c *Client) SetCache(cache ResultCache) {
	c.cache = cache
}

// SelectTools asks the server which tools suit the target
func (c *Client) SelectTools(ctx context.Context, target string) ([]string, error) {
	var result struct {
		Tools     []string `json:"tools"`
		Reasoning string   `json:"reasoning"`
	}
	err := c.post(ctx, "/api/intelligence/select-tools", map[string]string{"target": target}, &result)
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// AnalyzeTarget asks the server for an execution plan for the target
func (c *Client) AnalyzeTarget(ctx context.Context, target, analysisType string) ([]string, error) {
	if analysisType == "" {
		analysisType = "recon"
	}

	if c.cache != nil {
		if cached, err := c.cache.GetCachedResult(target, analysisType); err == nil && cached != "" {
			var result struct {
				Plan []string `json:"plan"`
			}
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result.Plan, nil
			}
		}
	}

	payload := map[string]string{"target": target, "analysis_type": analysisType}
	var raw json.RawMessage
	if err := c.post(ctx, "/api/intelligence/analyze-target", payload, &raw); err != nil {
		return nil, err
	}

	var result struct {
		Plan []string `json:"plan"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid analysis response: %w", err)
	}

	if c.cache != nil {
		// best effort, a cache failure never fails the analysis
		_ = c.cache.CacheResult(target, analysisType, string(raw))
	}

	return result.Plan, nil
}

// Health reports whether the automation server is responsive
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Telemetry holds the server's resource and process snapshot
type Telemetry struct {
	CPUUsage        int       `json:"cpu_usage"`
	RAMUsage        int       `json:"ram_usage"`
	CacheHits       int       `json:"cache_hits"`
	ActiveProcesses []Process `json:"active_processes"`
}

// Process describes one running scan process on the server
type Process struct {
	PID    int    `json:"pid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// GetTelemetry fetches the server's telemetry snapshot
func (c *Client) GetTelemetry(ctx context.Context) (*Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/telemetry", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch telemetry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telemetry request failed with status %d", resp.StatusCode)
	}

	var telemetry Telemetry
	if err := json.NewDecoder(resp.Body).Decode(&telemetry); err != nil {
		return nil, fmt.Errorf("invalid telemetry response: %w", err)
	}

	return &telemetry, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach HexStrike server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HexStrike server returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from HexStrike server: %w", err)
	}

	return nil
}
