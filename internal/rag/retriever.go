package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docqa-ai/cli/internal/vectorstore"
)

// BucketStore is the part of the vector store the retriever needs
type BucketStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, name string, queryVec []float32, topK int) ([]vectorstore.Hit, error)
}

// Embedder turns query text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Document is one retrieved chunk, without its internal embedding
type Document struct {
	Content   string
	Source    string
	DocType   string
	ImagePath string
	Title     string
	Score     float64
}

// Retriever fans a query out across per-source buckets and re-ranks the
// pooled candidates with Maximal Marginal Relevance
type Retriever struct {
	store     BucketStore
	embedder  Embedder
	overfetch int
	lambda    float64
	logger    *slog.Logger
}

// NewRetriever creates a multi-bucket retriever
func NewRetriever(store BucketStore, embedder Embedder, overfetch int, lambda float64, logger *slog.Logger) *Retriever {
	if overfetch <= 0 {
		overfetch = 3 // Default
	}
	if lambda < 0 || lambda > 1 {
		lambda = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:     store,
		embedder:  embedder,
		overfetch: overfetch,
		lambda:    lambda,
		logger:    logger,
	}
}

// Retrieve finds up to k relevant, mutually diverse chunks for a query
// across the given sources. Sources with no resolvable bucket are skipped;
// they are not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, sources []string, k int) ([]Document, error) {
	if k <= 0 {
		k = 5 // Default
	}

	buckets, err := r.resolveBuckets(ctx, sources)
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Overfetch per bucket so MMR has enough of a pool to diversify from
	var pool []vectorstore.Hit
	for _, bucket := range buckets {
		hits, err := r.store.Search(ctx, bucket, queryVec, k*r.overfetch)
		if err != nil {
			return nil, fmt.Errorf("failed to search bucket %s: %w", bucket, err)
		}
		pool = append(pool, hits...)
	}
	if len(pool) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(pool))
	for i, hit := range pool {
		embeddings[i] = hit.Embedding
	}

	var docs []Document
	for _, idx := range selectMMR(queryVec, embeddings, k, r.lambda) {
		hit := pool[idx]
		docs = append(docs, Document{
			Content:   hit.Content,
			Source:    hit.Source,
			DocType:   hit.DocType,
			ImagePath: hit.ImagePath,
			Title:     hit.Title,
			Score:     hit.Score,
		})
	}
	return docs, nil
}

// resolveBuckets maps source names to bucket names, trying the raw name
// first and the sanitized form second
func (r *Retriever) resolveBuckets(ctx context.Context, sources []string) ([]string, error) {
	var buckets []string
	for _, source := range sources {
		exists, err := r.store.Exists(ctx, source)
		if err != nil {
			return nil, err
		}
		if exists {
			buckets = append(buckets, source)
			continue
		}

		sanitized := vectorstore.BucketName(source)
		exists, err = r.store.Exists(ctx, sanitized)
		if err != nil {
			return nil, err
		}
		if exists {
			buckets = append(buckets, sanitized)
			continue
		}

		r.logger.Warn("no bucket for source, skipping", "source", source)
	}
	return buckets, nil
}
