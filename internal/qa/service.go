package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docqa-ai/cli/internal/db"
	"github.com/docqa-ai/cli/internal/rag"
)

// Fixed instructions for the answer function
const (
	rewriteInstruction = "Rewrite the user's query to a concise retrieval query. " +
		"Preserve important entities and keywords, remove chit-chat, and return only the rewritten query."
	answerInstruction = "Answer the user based on the provided context."
	titleInstruction  = "Generate a short (max 6 words) title for the given user query."
)

// ConversationStore is the persistence contract the orchestrator needs
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID *string) (*db.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*db.Conversation, error)
	ListConversations(ctx context.Context) ([]*db.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) ([]string, error)
	UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error
	AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, tokenCount int) (*db.Message, error)
	GetHistory(ctx context.Context, conversationID uuid.UUID) ([]*db.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*db.Message, error)
	GetSummary(ctx context.Context, conversationID uuid.UUID) (*db.Summary, error)
	GetDocumentSet(ctx context.Context, conversationID uuid.UUID) (*db.DocumentSet, error)
	ResolveNamespaces(ctx context.Context, conversationID uuid.UUID, names []string) ([]string, error)
	GetFeedbackForConversation(ctx context.Context, userID string, conversationID uuid.UUID) ([]*db.Feedback, error)
	AddFeedback(ctx context.Context, messageID uuid.UUID, userID *string, conversationID uuid.UUID, rating int) (*db.Feedback, error)
}

// Retriever fetches grounding documents for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, sources []string, k int) ([]rag.Document, error)
}

// BucketDropper removes vector buckets during cascade deletion
type BucketDropper interface {
	DropAll(ctx context.Context, names []string) error
}

// Service orchestrates the per-question flow: build context, retrieve,
// answer, persist
type Service struct {
	store      ConversationStore
	contextMgr *rag.ContextManager
	retriever  Retriever
	generator  rag.Generator
	buckets    BucketDropper
	topK       int
	logger     *slog.Logger
}

// NewService creates the query orchestrator
func NewService(
	store ConversationStore,
	contextMgr *rag.ContextManager,
	retriever Retriever,
	generator rag.Generator,
	buckets BucketDropper,
	topK int,
	logger *slog.Logger,
) *Service {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		contextMgr: contextMgr,
		retriever:  retriever,
		generator:  generator,
		buckets:    buckets,
		topK:       topK,
		logger:     logger,
	}
}

// NewConversation starts an empty conversation. The title stays unset
// until the first question generates one.
func (s *Service) NewConversation(ctx context.Context, userID *string) (*db.Conversation, error) {
	return s.store.CreateConversation(ctx, userID)
}

// ListConversations returns all conversations, most recently active first
func (s *Service) ListConversations(ctx context.Context) ([]*db.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// History returns a conversation's messages in order
func (s *Service) History(ctx context.Context, conversationID uuid.UUID) ([]*db.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return s.store.GetHistory(ctx, conversationID)
}

// ListDocuments returns the names of documents ingested into a conversation
func (s *Service) ListDocuments(ctx context.Context, conversationID uuid.UUID) ([]string, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	set, err := s.store.GetDocumentSet(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, nil
	}
	return set.Names, nil
}

// DeleteConversation removes a conversation, everything it owns, and all
// vector buckets it referenced
func (s *Service) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	namespaces, err := s.store.DeleteConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(namespaces) > 0 {
		// Rows are already gone; bucket cleanup failures are logged inside
		// DropAll and must not resurrect the conversation
		if err := s.buckets.DropAll(ctx, namespaces); err != nil {
			s.logger.Warn("bucket cleanup incomplete", "conversation", conversationID, "error", err)
		}
	}
	return nil
}

// SubmitFeedback records a 1-5 rating against an AI message
func (s *Service) SubmitFeedback(ctx context.Context, conversationID, messageID uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.Role != db.RoleAI {
		return ErrMessageNotFound
	}

	_, err = s.store.AddFeedback(ctx, messageID, conv.UserID, conversationID, rating)
	return err
}

// Ask answers a question grounded in the selected documents and persists
// both turns. Questions without a document selection are rejected before
// any side effect: answers are always grounded, never general-knowledge.
func (s *Service) Ask(ctx context.Context, conversationID uuid.UUID, query string, selectedDocs []string) (string, error) {
	if len(selectedDocs) == 0 {
		return "", ErrNoDocumentsSelected
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if conv == nil {
		return "", ErrConversationNotFound
	}

	// Lazy title: best-effort, failure leaves it unset for the next query
	if conv.Title == nil {
		s.generateTitle(ctx, conv, query)
	}

	messages, err := s.store.GetHistory(ctx, conversationID)
	if err != nil {
		return "", err
	}
	summary, err := s.store.GetSummary(ctx, conversationID)
	if err != nil {
		return "", err
	}

	active, summary, err := s.contextMgr.PruneAndSummarize(ctx, conversationID, messages, summary)
	if err != nil {
		return "", fmt.Errorf("context pruning failed: %w", err)
	}

	instruction := ""
	if conv.UserID != nil {
		feedbacks, err := s.store.GetFeedbackForConversation(ctx, *conv.UserID, conversationID)
		if err != nil {
			return "", err
		}
		instruction = rag.FeedbackInstruction(feedbacks)
	}

	promptContext := rag.BuildContext(instruction, summary, active)

	// Rewriting is best-effort; the original question is always a valid
	// retrieval query
	retrievalQuery := query
	if rewritten, err := s.generator.Generate(ctx, query, rewriteInstruction); err == nil && strings.TrimSpace(rewritten) != "" {
		retrievalQuery = rewritten
	} else if err != nil {
		s.logger.Debug("query rewrite failed, using original", "error", err)
	}

	// Selected names map to bucket namespaces through the conversation's
	// document linkage; names without linkage go to the retriever as-is
	targets, err := s.store.ResolveNamespaces(ctx, conversationID, selectedDocs)
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		targets = selectedDocs
	}

	docs, err := s.retriever.Retrieve(ctx, retrievalQuery, targets, s.topK)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	promptContext += fmt.Sprintf("\n\nRelevant documents:\n%s", formatDocuments(docs))
	promptContext += fmt.Sprintf("\n\nHuman: %s\nAI:", query)

	answer, err := s.generator.Generate(ctx, promptContext, answerInstruction)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	if _, err := s.store.AddMessage(ctx, conversationID, db.RoleHuman, query, rag.EstimateTokens(query)); err != nil {
		return "", err
	}
	if _, err := s.store.AddMessage(ctx, conversationID, db.RoleAI, answer, rag.EstimateTokens(answer)); err != nil {
		return "", err
	}

	return answer, nil
}

// generateTitle synthesizes and persists a short conversation title
func (s *Service) generateTitle(ctx context.Context, conv *db.Conversation, query string) {
	title, err := s.generator.Generate(ctx, query, titleInstruction)
	if err != nil {
		s.logger.Warn("title generation failed", "conversation", conv.ID, "error", err)
		return
	}
	title = strings.TrimSpace(strings.ReplaceAll(title, `"`, ""))
	if title == "" {
		return
	}
	if err := s.store.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
		s.logger.Warn("failed to store title", "conversation", conv.ID, "error", err)
		return
	}
	conv.Title = &title
}

// formatDocuments renders retrieved chunks for the prompt context
func formatDocuments(docs []rag.Document) string {
	if len(docs) == 0 {
		return "(no relevant documents found)"
	}
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, doc.Content)
		if doc.Source != "" {
			fmt.Fprintf(&b, "\n(source: %s)", doc.Source)
		}
	}
	return b.String()
}
