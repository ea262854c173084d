package db

import (
	"database/sql"
	"fmt"
	"time"
)

// CacheResult stores the JSON result of a target analysis, replacing any
// previous entry for the same target and analysis type.
func (s *Store) CacheResult(target, analysisType, resultJSON string) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO results_cache (target, analysis_type, result_json, timestamp) VALUES (?, ?, ?, ?)",
		target, analysisType, resultJSON, float64(time.Now().UnixNano())/1e9,
	)
	if err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// GetCachedResult returns the cached JSON for a target and analysis type, or
// an empty string when nothing is cached.
func (s *Store) GetCachedResult(target, analysisType string) (string, error) {
	var resultJSON string
	err := s.conn.QueryRow(
		"SELECT result_json FROM results_cache WHERE target = ? AND analysis_type = ?",
		target, analysisType,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cached result: %w", err)
	}
	return resultJSON, nil
}
