package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateConversation creates a new conversation with no title yet
func (db *DB) CreateConversation(ctx context.Context, userID *string) (*Conversation, error) {
	var conv Conversation
	err := db.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_id)
		 VALUES ($1, $2)
		 RETURNING id, user_id, title, created_at, updated_at`,
		uuid.New(), userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// GetConversation retrieves a conversation by id, or nil if absent
func (db *DB) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var conv Conversation
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations retrieves all conversations, most recently active first
func (db *DB) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

// UpdateConversationTitle sets the lazily generated title
func (db *DB) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = NOW() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and everything it owns:
// messages, summary, document linkage and feedback. It returns the vector
// namespaces the conversation referenced so the caller can drop the buckets.
func (db *DB) DeleteConversation(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var namespaces []string
	err = tx.QueryRow(ctx,
		`SELECT vector_namespaces FROM conversation_documents WHERE conversation_id = $1`,
		id,
	).Scan(&namespaces)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read vector namespaces: %w", err)
	}

	for _, stmt := range []string{
		`DELETE FROM feedbacks WHERE conversation_id = $1`,
		`DELETE FROM conversation_documents WHERE conversation_id = $1`,
		`DELETE FROM conversation_summaries WHERE conversation_id = $1`,
		`DELETE FROM messages WHERE conversation_id = $1`,
		`DELETE FROM conversations WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return nil, fmt.Errorf("failed to delete conversation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return namespaces, nil
}

// AddMessage appends a message to a conversation and bumps its updated_at
func (db *DB) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, tokenCount int) (*Message, error) {
	var msg Message
	err := db.pool.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, token_count)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, conversation_id, role, content, token_count, rating, created_at`,
		uuid.New(), conversationID, role, content, tokenCount,
	).Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.TokenCount, &msg.Rating, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}
	return &msg, nil
}

// GetHistory retrieves a conversation's messages in chronological order
func (db *DB) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]*Message, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, token_count, rating, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.TokenCount, &msg.Rating, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// GetMessage retrieves a single message by id, or nil if absent
func (db *DB) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	var msg Message
	err := db.pool.QueryRow(ctx,
		`SELECT id, conversation_id, role, content, token_count, rating, created_at
		 FROM messages WHERE id = $1`,
		id,
	).Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.TokenCount, &msg.Rating, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// UpsertSummary stores the running summary, replacing any previous one
func (db *DB) UpsertSummary(ctx context.Context, conversationID uuid.UUID, summary string, tokenCount int) (*Summary, error) {
	var s Summary
	err := db.pool.QueryRow(ctx,
		`INSERT INTO conversation_summaries (conversation_id, summary, token_count, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (conversation_id)
		 DO UPDATE SET summary = EXCLUDED.summary, token_count = EXCLUDED.token_count, updated_at = NOW()
		 RETURNING conversation_id, summary, token_count, updated_at`,
		conversationID, summary, tokenCount,
	).Scan(&s.ConversationID, &s.Summary, &s.TokenCount, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert summary: %w", err)
	}
	return &s, nil
}

// GetSummary retrieves the conversation's running summary, or nil if absent
func (db *DB) GetSummary(ctx context.Context, conversationID uuid.UUID) (*Summary, error) {
	var s Summary
	err := db.pool.QueryRow(ctx,
		`SELECT conversation_id, summary, token_count, updated_at
		 FROM conversation_summaries WHERE conversation_id = $1`,
		conversationID,
	).Scan(&s.ConversationID, &s.Summary, &s.TokenCount, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &s, nil
}
