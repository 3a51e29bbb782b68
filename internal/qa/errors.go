package qa

import "errors"

// Client-visible errors. Everything else surfaces as a wrapped service
// error.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("AI message not found")
	ErrNoDocumentsSelected  = errors.New("no document selected for this query")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
)
