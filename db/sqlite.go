package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite conversation database
type Store struct {
	conn  *sql.DB
	codec SecretCodec
}

// New opens (creating if necessary) the conversation store at dbPath, applies
// the schema and runs the one-time legacy history migration.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	store := &Store{conn: conn, codec: Base64Codec{}}

	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := store.migrateLegacyHistory(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate legacy history: %w", err)
	}

	return store, nil
}

// SetSecretCodec replaces the codec used for credentials at rest
func (s *Store) SetSecretCodec(codec SecretCodec) {
	s.codec = codec
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// migrate applies the schema
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			agent_type TEXT NOT NULL DEFAULT 'BugBountyWorkflowManager',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			archived INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT DEFAULT '',
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS ai_providers (
			name TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			model TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0,
			config TEXT DEFAULT ''
		)`,

		// Legacy flat chat log, retained only for one-time migration
		`CREATE TABLE IF NOT EXISTS chat_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT,
			message TEXT,
			timestamp REAL,
			agent TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS results_cache (
			target TEXT,
			analysis_type TEXT,
			result_json TEXT,
			timestamp REAL,
			PRIMARY KEY (target, analysis_type)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts ON messages(conversation_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.conn.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return nil
}

// migrateLegacyHistory copies the legacy flat chat log into a single
// conversation, preserving order and timestamps. The migration is guarded by
// the conversations table being empty, not by a version flag: once it has run
// the precondition no longer holds.
func (s *Store) migrateLegacyHistory() error {
	var legacyCount, convCount int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM chat_history").Scan(&legacyCount); err != nil {
		return fmt.Errorf("failed to count legacy rows: %w", err)
	}
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&convCount); err != nil {
		return fmt.Errorf("failed to count conversations: %w", err)
	}

	if legacyCount == 0 || convCount > 0 {
		return nil
	}

	rows, err := s.conn.Query(
		"SELECT role, message, timestamp, agent FROM chat_history ORDER BY timestamp ASC, id ASC",
	)
	if err != nil {
		return fmt.Errorf("failed to read legacy history: %w", err)
	}
	defer rows.Close()

	type legacyRow struct {
		role, message, agent string
		timestamp            float64
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.role, &r.message, &r.timestamp, &r.agent); err != nil {
			return fmt.Errorf("failed to scan legacy row: %w", err)
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read legacy history: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	convID := uuid.NewString()
	now := time.Now()
	if _, err := tx.Exec(
		"INSERT INTO conversations (id, title, agent_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		convID, "Migrated History", "General", now, now,
	); err != nil {
		return fmt.Errorf("failed to create migration conversation: %w", err)
	}

	for _, r := range legacy {
		ts := time.Unix(int64(r.timestamp), int64((r.timestamp-float64(int64(r.timestamp)))*1e9))
		metadata, err := encodeMetadata(map[string]any{"agent": r.agent})
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO messages (conversation_id, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?)",
			convID, r.role, r.message, ts, metadata,
		); err != nil {
			return fmt.Errorf("failed to copy legacy message: %w", err)
		}
	}

	return tx.Commit()
}
