package documents

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/docqa-ai/cli/internal/vectorstore"
)

// Texts shorter than this are stored as a single chunk
const chunkThreshold = 2000

// BucketInserter stores embedded chunks in a per-source bucket
type BucketInserter interface {
	Insert(ctx context.Context, name string, contents []string, vectors [][]float32, metas []vectorstore.ChunkMeta) error
}

// DocumentLinker records which documents a conversation can query
type DocumentLinker interface {
	AddDocument(ctx context.Context, conversationID uuid.UUID, name, docType, namespace string) error
}

// Embedder turns chunk text into vectors
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Processor turns raw sources into embedded chunks in per-source buckets
type Processor struct {
	buckets      BucketInserter
	linker       DocumentLinker
	embedder     Embedder
	search       *TavilyClient
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewProcessor creates a document processor
func NewProcessor(
	buckets BucketInserter,
	linker DocumentLinker,
	embedder Embedder,
	search *TavilyClient,
	chunkSize, chunkOverlap int,
	logger *slog.Logger,
) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= 100 {
		chunkOverlap = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		buckets:      buckets,
		linker:       linker,
		embedder:     embedder,
		search:       search,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// IngestFile parses, chunks, embeds and stores a local file for a
// conversation. Returns the number of chunks stored.
func (p *Processor) IngestFile(ctx context.Context, conversationID uuid.UUID, filePath string) (int, error) {
	parser, docType, err := parserFor(filePath)
	if err != nil {
		return 0, err
	}

	parsed, err := parser.Parse(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	sourceName := filepath.Base(filePath)
	return p.ingest(ctx, conversationID, sourceName, parsed.Title, docType, parsed.Text)
}

// IngestURL fetches a web page and stores it for a conversation
func (p *Processor) IngestURL(ctx context.Context, conversationID uuid.UUID, url string) (int, error) {
	parsed, err := FetchURL(ctx, url)
	if err != nil {
		return 0, err
	}
	return p.ingest(ctx, conversationID, url, parsed.Title, "web", parsed.Text)
}

// IngestTopic searches the web for a topic and ingests the top results.
// Individual page failures are logged and skipped; the count of stored
// chunks across all pages is returned.
func (p *Processor) IngestTopic(ctx context.Context, conversationID uuid.UUID, topic string, maxResults int) (int, error) {
	if p.search == nil || !p.search.Enabled() {
		return 0, fmt.Errorf("topic search requires a Tavily API key")
	}

	urls, err := p.search.Search(ctx, topic, maxResults)
	if err != nil {
		return 0, fmt.Errorf("topic search failed: %w", err)
	}

	total := 0
	for _, url := range urls {
		count, err := p.IngestURL(ctx, conversationID, url)
		if err != nil {
			p.logger.Warn("skipping topic result", "url", url, "error", err)
			continue
		}
		total += count
	}
	return total, nil
}

// ingest chunks, embeds and stores one document, then links it to the
// conversation
func (p *Processor) ingest(ctx context.Context, conversationID uuid.UUID, sourceName, title, docType, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("document %s has no text content", sourceName)
	}

	var chunks []string
	if len(text) > chunkThreshold {
		chunks = p.splitText(text)
	} else {
		chunks = []string{text}
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s: %w", sourceName, err)
	}

	metas := make([]vectorstore.ChunkMeta, len(chunks))
	for i := range metas {
		metas[i] = vectorstore.ChunkMeta{
			Source:  sourceName,
			DocType: docType,
			Title:   title,
		}
	}

	bucket := vectorstore.BucketName(sourceName)
	if err := p.buckets.Insert(ctx, bucket, chunks, vectors, metas); err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", sourceName, err)
	}

	if err := p.linker.AddDocument(ctx, conversationID, sourceName, docType, bucket); err != nil {
		return 0, err
	}

	p.logger.Info("ingested document",
		"source", sourceName, "type", docType, "bucket", bucket, "chunks", len(chunks))
	return len(chunks), nil
}

// splitText splits text into chunks with overlap
func (p *Processor) splitText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	currentChunk := []string{}
	currentSize := 0

	for _, word := range words {
		wordSize := len(word) + 1 // +1 for space
		if currentSize+wordSize > p.chunkSize && len(currentChunk) > 0 {
			chunks = append(chunks, strings.Join(currentChunk, " "))

			// Keep overlap words for next chunk
			overlapWords := len(currentChunk) * p.chunkOverlap / 100
			if overlapWords > 0 && overlapWords < len(currentChunk) {
				currentChunk = currentChunk[len(currentChunk)-overlapWords:]
				currentSize = len(strings.Join(currentChunk, " "))
			} else {
				currentChunk = []string{}
				currentSize = 0
			}
		}
		currentChunk = append(currentChunk, word)
		currentSize += wordSize
	}

	if len(currentChunk) > 0 {
		chunks = append(chunks, strings.Join(currentChunk, " "))
	}

	return chunks
}
