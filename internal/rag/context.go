package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docqa-ai/cli/internal/db"
)

// summarizeInstruction is the fixed instruction used for incremental
// re-summarization of archived turns
const summarizeInstruction = "Create a concise running summary of this conversation."

// Feedback-derived tone instructions, selected by mean rating
const (
	instructionDissatisfied = "User is dissatisfied in this conversation. " +
		"Be very clear, detailed, step-by-step, and avoid vague explanations."
	instructionWantsExamples = "User wants clearer explanations with examples in this conversation."
	instructionSatisfied     = "User is satisfied with answers in this conversation. " +
		"Maintain current clarity and depth."
)

// Generator is the external answer function: (context, instruction) -> text
type Generator interface {
	Generate(ctx context.Context, contextText, instruction string) (string, error)
}

// SummaryWriter persists the running summary
type SummaryWriter interface {
	UpsertSummary(ctx context.Context, conversationID uuid.UUID, summary string, tokenCount int) (*db.Summary, error)
}

// ContextManager keeps a conversation's prompt context inside a token
// budget by archiving old turns into an incrementally updated summary
type ContextManager struct {
	summaries      SummaryWriter
	generator      Generator
	maxTokens      int
	reservedTokens int
	logger         *slog.Logger
}

// NewContextManager creates a context manager with the given token budget.
// reservedTokens is head-room held back for the summary block itself.
func NewContextManager(summaries SummaryWriter, generator Generator, maxTokens, reservedTokens int, logger *slog.Logger) *ContextManager {
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	if reservedTokens <= 0 {
		reservedTokens = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextManager{
		summaries:      summaries,
		generator:      generator,
		maxTokens:      maxTokens,
		reservedTokens: reservedTokens,
		logger:         logger,
	}
}

// EstimateTokens approximates the token count of text by its word count.
// Non-empty text never counts as zero.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(strings.Fields(text))
	if n == 0 {
		return 1
	}
	return n
}

// totalTokens sums the token counts of the summary and all messages
func totalTokens(summary *db.Summary, messages []*db.Message) int {
	total := 0
	if summary != nil {
		total += summary.TokenCount
	}
	for _, msg := range messages {
		total += msg.TokenCount
	}
	return total
}

// PruneAndSummarize archives the oldest turns, two at a time, until the
// context fits the budget, then folds the archived turns into the running
// summary. When nothing needs archiving the input is returned unchanged
// and no summarization call is made. messages must be oldest-first.
func (cm *ContextManager) PruneAndSummarize(ctx context.Context, conversationID uuid.UUID, messages []*db.Message, summary *db.Summary) ([]*db.Message, *db.Summary, error) {
	active := make([]*db.Message, len(messages))
	copy(active, messages)

	var archived []*db.Message
	for totalTokens(summary, active)+cm.reservedTokens > cm.maxTokens && len(active) >= 2 {
		archived = append(archived, active[0], active[1])
		active = active[2:]
	}

	if len(archived) == 0 {
		return active, summary, nil
	}

	var input strings.Builder
	if summary != nil {
		fmt.Fprintf(&input, "Previous summary:\n%s\n\n", summary.Summary)
	}
	for _, msg := range archived {
		fmt.Fprintf(&input, "%s: %s\n", msg.Role, msg.Content)
	}

	text, err := cm.generator.Generate(ctx, input.String(), summarizeInstruction)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to summarize archived turns: %w", err)
	}

	newSummary, err := cm.summaries.UpsertSummary(ctx, conversationID, text, EstimateTokens(text))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store summary: %w", err)
	}

	cm.logger.Debug("archived old turns into summary",
		"conversation", conversationID, "archived", len(archived), "active", len(active))

	return active, newSummary, nil
}

// FeedbackInstruction derives a tone instruction from the user's feedback
// in this conversation. No feedback means no instruction.
func FeedbackInstruction(feedbacks []*db.Feedback) string {
	if len(feedbacks) == 0 {
		return ""
	}

	sum := 0
	for _, fb := range feedbacks {
		sum += fb.Rating
	}
	avg := float64(sum) / float64(len(feedbacks))

	switch {
	case avg <= 2:
		return instructionDissatisfied
	case avg <= 3:
		return instructionWantsExamples
	default:
		return instructionSatisfied
	}
}

// BuildContext assembles the prompt context block. The order is fixed:
// feedback instruction, then summary, then one line per active message.
// Retrieved documents and the query cue are appended by the orchestrator.
func BuildContext(instruction string, summary *db.Summary, messages []*db.Message) string {
	var b strings.Builder

	if instruction != "" {
		fmt.Fprintf(&b, "System instruction:\n%s\n\n", instruction)
	}

	if summary != nil {
		fmt.Fprintf(&b, "Conversation summary:\n%s\n\n", summary.Summary)
	}

	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", capitalize(msg.Role), msg.Content)
	}

	return b.String()
}

// capitalize upper-cases the first byte of an ASCII role name
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
