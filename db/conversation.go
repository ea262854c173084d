package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateConversation creates a new conversation and returns it
func (s *Store) CreateConversation(title, agentType string) (*Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	if agentType == "" {
		agentType = "BugBountyWorkflowManager"
	}

	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		AgentType: agentType,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err := s.conn.Exec(
		"INSERT INTO conversations (id, title, agent_type, created_at, updated_at, archived) VALUES (?, ?, ?, ?, ?, 0)",
		conv.ID, conv.Title, conv.AgentType, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *Store) GetConversation(id string) (*Conversation, error) {
	var conv Conversation
	err := s.conn.QueryRow(
		"SELECT id, title, agent_type, created_at, updated_at, archived FROM conversations WHERE id = ?",
		id,
	).Scan(&conv.ID, &conv.Title, &conv.AgentType, &conv.CreatedAt, &conv.UpdatedAt, &conv.Archived)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations returns conversations newest-updated-first, each annotated
// with a preview of its most recent message and its total message count.
func (s *Store) ListConversations(archived bool) ([]*ConversationSummary, error) {
	rows, err := s.conn.Query(`
		SELECT c.id, c.title, c.agent_type, c.created_at, c.updated_at, c.archived,
		       COALESCE((SELECT m.content FROM messages m
		                 WHERE m.conversation_id = c.id
		                 ORDER BY m.timestamp DESC, m.id DESC LIMIT 1), ''),
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.archived = ?
		ORDER BY c.updated_at DESC`,
		archived,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		var sum ConversationSummary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.AgentType, &sum.CreatedAt, &sum.UpdatedAt,
			&sum.Archived, &sum.Preview, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		sum.Preview = truncatePreview(sum.Preview, 60)
		summaries = append(summaries, &sum)
	}

	return summaries, rows.Err()
}

// UpdateConversationTitle updates a conversation's title
func (s *Store) UpdateConversationTitle(id, title string) error {
	_, err := s.conn.Exec(
		"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// ArchiveConversation archives or unarchives a conversation
func (s *Store) ArchiveConversation(id string, archived bool) error {
	_, err := s.conn.Exec(
		"UPDATE conversations SET archived = ? WHERE id = ?",
		archived, id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}
	return nil
}

// DeleteConversation deletes a conversation and all its messages
func (s *Store) DeleteConversation(id string) error {
	// messages go with it via ON DELETE CASCADE
	_, err := s.conn.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// CountConversations returns the total number of conversations
func (s *Store) CountConversations() (int64, error) {
	var count int64
	err := s.conn.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// truncatePreview shortens s to at most n runes for sidebar display
func truncatePreview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
