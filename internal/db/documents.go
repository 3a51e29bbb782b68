package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AddDocument appends a document to the conversation's linkage record.
// All three arrays grow together in a single statement, so index i of one
// always pairs with index i of the others even under concurrent callers.
func (db *DB) AddDocument(ctx context.Context, conversationID uuid.UUID, name, docType, namespace string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO conversation_documents (conversation_id, document_names, document_types, vector_namespaces)
		 VALUES ($1, ARRAY[$2], ARRAY[$3], ARRAY[$4])
		 ON CONFLICT (conversation_id)
		 DO UPDATE SET
			document_names = array_append(conversation_documents.document_names, $2),
			document_types = array_append(conversation_documents.document_types, $3),
			vector_namespaces = array_append(conversation_documents.vector_namespaces, $4)`,
		conversationID, name, docType, namespace,
	)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// GetDocumentSet retrieves the conversation's document linkage, or nil if
// nothing has been ingested yet
func (db *DB) GetDocumentSet(ctx context.Context, conversationID uuid.UUID) (*DocumentSet, error) {
	var set DocumentSet
	err := db.pool.QueryRow(ctx,
		`SELECT conversation_id, document_names, document_types, vector_namespaces
		 FROM conversation_documents WHERE conversation_id = $1`,
		conversationID,
	).Scan(&set.ConversationID, &set.Names, &set.Types, &set.Namespaces)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document set: %w", err)
	}
	return &set, nil
}

// ResolveNamespaces maps document names to their vector namespaces,
// skipping names the conversation never ingested
func (db *DB) ResolveNamespaces(ctx context.Context, conversationID uuid.UUID, names []string) ([]string, error) {
	set, err := db.GetDocumentSet(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, nil
	}

	byName := make(map[string]string, len(set.Names))
	for i, name := range set.Names {
		if i < len(set.Namespaces) {
			byName[name] = set.Namespaces[i]
		}
	}

	var namespaces []string
	for _, name := range names {
		if ns, ok := byName[name]; ok {
			namespaces = append(namespaces, ns)
		}
	}
	return namespaces, nil
}
