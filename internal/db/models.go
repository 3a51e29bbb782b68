package db

import (
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Conversation represents a chat session. Title stays nil until the first
// query generates one.
type Conversation struct {
	ID        uuid.UUID
	UserID    *string
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents one turn in a conversation
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	TokenCount     int
	Rating         *int
	CreatedAt      time.Time
}

// Summary is the running digest of archived turns. At most one exists per
// conversation; re-summarization overwrites it.
type Summary struct {
	ConversationID uuid.UUID
	Summary        string
	TokenCount     int
	UpdatedAt      time.Time
}

// DocumentSet links ingested documents to a conversation. The three slices
// are index-aligned and append-only: Names[i] was stored under
// Namespaces[i] with type Types[i].
type DocumentSet struct {
	ConversationID uuid.UUID
	Names          []string
	Types          []string
	Namespaces     []string
}

// Feedback is a 1-5 rating attached to an AI message
type Feedback struct {
	ID             uuid.UUID
	MessageID      uuid.UUID
	UserID         *string
	ConversationID uuid.UUID
	Rating         int
	CreatedAt      time.Time
}
