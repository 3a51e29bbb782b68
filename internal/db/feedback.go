package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AddFeedback stores a rating for an AI message
func (db *DB) AddFeedback(ctx context.Context, messageID uuid.UUID, userID *string, conversationID uuid.UUID, rating int) (*Feedback, error) {
	var fb Feedback
	err := db.pool.QueryRow(ctx,
		`INSERT INTO feedbacks (id, message_id, user_id, conversation_id, rating)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, message_id, user_id, conversation_id, rating, created_at`,
		uuid.New(), messageID, userID, conversationID, rating,
	).Scan(&fb.ID, &fb.MessageID, &fb.UserID, &fb.ConversationID, &fb.Rating, &fb.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add feedback: %w", err)
	}
	return &fb, nil
}

// GetFeedbackForConversation retrieves all feedback a user left in one
// conversation, oldest first
func (db *DB) GetFeedbackForConversation(ctx context.Context, userID string, conversationID uuid.UUID) ([]*Feedback, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, message_id, user_id, conversation_id, rating, created_at
		 FROM feedbacks WHERE user_id = $1 AND conversation_id = $2
		 ORDER BY created_at ASC`,
		userID, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	defer rows.Close()

	var feedbacks []*Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.MessageID, &fb.UserID, &fb.ConversationID, &fb.Rating, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, &fb)
	}
	return feedbacks, rows.Err()
}
