package db

import (
	"encoding/json"
	"fmt"
	"time"
)

// AddMessage appends a message to a conversation and bumps the conversation's
// updated_at in the same transaction.
func (s *Store) AddMessage(conversationID, role, content string, metadata map[string]any) (*Message, error) {
	encoded, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(
		"INSERT INTO messages (conversation_id, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?)",
		conversationID, role, content, now, encoded,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message ID: %w", err)
	}

	if _, err := tx.Exec(
		"UPDATE conversations SET updated_at = ? WHERE id = ?",
		now, conversationID,
	); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      now,
		Metadata:       metadata,
	}, nil
}

// GetMessages retrieves messages in a conversation oldest-first. A positive
// limit returns only the most recent limit messages, still oldest-first.
func (s *Store) GetMessages(conversationID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, timestamp, metadata
		FROM messages WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC`
	args := []any{conversationID}

	if limit > 0 {
		query = `
			SELECT id, conversation_id, role, content, timestamp, metadata FROM (
				SELECT id, conversation_id, role, content, timestamp, metadata
				FROM messages WHERE conversation_id = ?
				ORDER BY timestamp DESC, id DESC LIMIT ?
			) ORDER BY timestamp ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var encoded string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if msg.Metadata, err = decodeMetadata(encoded); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of messages in a conversation
func (s *Store) CountMessages(conversationID string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(encoded string) (map[string]any, error) {
	if encoded == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(encoded), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}
