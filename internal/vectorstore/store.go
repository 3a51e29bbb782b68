package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/docqa-ai/cli/internal/db"
)

// Config holds similarity index settings
type Config struct {
	Metric    string // cosine, ip or l2
	IndexList int    // ivfflat lists
	Probes    int    // ivfflat probes at query time
}

// Store manages one isolated pgvector table per ingested source
type Store struct {
	db     *db.DB
	cfg    Config
	logger *slog.Logger
}

// ChunkMeta carries the metadata stored alongside each chunk
type ChunkMeta struct {
	Source    string
	DocType   string
	ImagePath string
	Title     string
}

// Hit is a single search result from one bucket
type Hit struct {
	ID        int64
	Score     float64
	Content   string
	Source    string
	DocType   string
	ImagePath string
	Title     string
	Embedding []float32
}

// New creates a bucket store backed by the shared database pool
func New(database *db.DB, cfg Config, logger *slog.Logger) *Store {
	if cfg.Metric == "" {
		cfg.Metric = "cosine"
	}
	if cfg.IndexList <= 0 {
		cfg.IndexList = 100
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: database, cfg: cfg, logger: logger}
}

// opclass returns the ivfflat operator class for the configured metric
func (s *Store) opclass() string {
	switch s.cfg.Metric {
	case "ip":
		return "vector_ip_ops"
	case "l2":
		return "vector_l2_ops"
	default:
		return "vector_cosine_ops"
	}
}

// Exists reports whether a bucket table is present
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.Pool().QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}
	return exists, nil
}

// CreateOrGet ensures a bucket exists with the given embedding dimension.
// Creation is safe against racing callers; an existing bucket whose
// dimension differs from dim is a fatal configuration error.
func (s *Store) CreateOrGet(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d for bucket %s", dim, name)
	}

	table := pgx.Identifier{name}.Sanitize()
	_, err := s.db.Pool().Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id bigserial PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			content text NOT NULL,
			source text NOT NULL DEFAULT '',
			doc_type text NOT NULL DEFAULT '',
			image_path text NOT NULL DEFAULT '',
			title text NOT NULL DEFAULT ''
		)`, table, dim))
	if err != nil && !isDuplicateRelation(err) {
		return fmt.Errorf("failed to create bucket %s: %w", name, err)
	}

	existingDim, err := s.bucketDimension(ctx, name)
	if err != nil {
		return err
	}
	if existingDim != dim {
		return fmt.Errorf("embedding dimension mismatch: bucket %s expects %d, got %d", name, existingDim, dim)
	}

	index := pgx.Identifier{name + "_emb_idx"}.Sanitize()
	_, err = s.db.Pool().Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding %s) WITH (lists = %d)`,
		index, table, s.opclass(), s.cfg.IndexList))
	if err != nil && !isDuplicateRelation(err) {
		return fmt.Errorf("failed to index bucket %s: %w", name, err)
	}

	return nil
}

// isDuplicateRelation reports whether err is the catalog conflict a racing
// creator can still hit despite IF NOT EXISTS. The loser sees the relation
// as already present, which counts as success.
func isDuplicateRelation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42P07" || pgErr.Code == "23505"
}

// bucketDimension reads the declared vector dimension of a bucket.
// pgvector stores the dimension in the column's type modifier.
func (s *Store) bucketDimension(ctx context.Context, name string) (int, error) {
	var typmod int
	err := s.db.Pool().QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		name,
	).Scan(&typmod)
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension of bucket %s: %w", name, err)
	}
	return typmod, nil
}

// Insert stores chunks with their embeddings and metadata in one bucket
// and makes them visible to subsequent searches before returning. A failed
// insert triggers one drop-and-recreate recovery; a second failure is
// surfaced to the caller.
func (s *Store) Insert(ctx context.Context, name string, contents []string, vectors [][]float32, metas []ChunkMeta) error {
	if len(contents) == 0 {
		return nil
	}
	if len(contents) != len(vectors) || len(contents) != len(metas) {
		return fmt.Errorf("chunks, vectors and metadata must have the same length")
	}
	dim := len(vectors[0])

	if err := s.CreateOrGet(ctx, name, dim); err != nil {
		return err
	}

	if err := s.insertBatch(ctx, name, contents, vectors, metas); err != nil {
		s.logger.Warn("insert failed, recreating bucket", "bucket", name, "error", err)
		if dropErr := s.Drop(ctx, name); dropErr != nil {
			return fmt.Errorf("failed to recreate bucket %s: %w", name, dropErr)
		}
		if createErr := s.CreateOrGet(ctx, name, dim); createErr != nil {
			return createErr
		}
		if retryErr := s.insertBatch(ctx, name, contents, vectors, metas); retryErr != nil {
			return fmt.Errorf("insert into bucket %s failed after recreation: %w", name, retryErr)
		}
	}

	return nil
}

// insertBatch writes all rows in a single transaction; the commit is the
// flush point after which searches see the data
func (s *Store) insertBatch(ctx context.Context, name string, contents []string, vectors [][]float32, metas []ChunkMeta) error {
	table := pgx.Identifier{name}.Sanitize()
	sql := fmt.Sprintf(
		`INSERT INTO %s (embedding, content, source, doc_type, image_path, title)
		 VALUES ($1, $2, $3, $4, $5, $6)`, table)

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range contents {
		batch.Queue(sql,
			pgvector.NewVector(vectors[i]), contents[i],
			metas[i].Source, metas[i].DocType, metas[i].ImagePath, metas[i].Title,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < len(contents); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// Search runs nearest-neighbor search in one bucket. A missing bucket is
// an empty result, not an error: absence of a source's index is not a
// query-time fault.
func (s *Store) Search(ctx context.Context, name string, queryVec []float32, topK int) ([]Hit, error) {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		s.logger.Debug("bucket not found, returning empty result", "bucket", name)
		return nil, nil
	}

	table := pgx.Identifier{name}.Sanitize()
	var scoreExpr, orderExpr string
	switch s.cfg.Metric {
	case "ip":
		scoreExpr = "-(embedding <#> $1)"
		orderExpr = "embedding <#> $1"
	case "l2":
		scoreExpr = "1 / (1 + (embedding <-> $1))"
		orderExpr = "embedding <-> $1"
	default:
		scoreExpr = "1 - (embedding <=> $1)"
		orderExpr = "embedding <=> $1"
	}
	sql := fmt.Sprintf(
		`SELECT id, content, source, doc_type, image_path, title, embedding, %s AS score
		 FROM %s ORDER BY %s LIMIT $2`, scoreExpr, table, orderExpr)

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin search: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL ivfflat.probes = %d`, s.cfg.Probes)); err != nil {
		return nil, fmt.Errorf("failed to set probes: %w", err)
	}

	rows, err := tx.Query(ctx, sql, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search bucket %s: %w", name, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var emb pgvector.Vector
		if err := rows.Scan(&hit.ID, &hit.Content, &hit.Source, &hit.DocType, &hit.ImagePath, &hit.Title, &emb, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hit.Embedding = emb.Slice()
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hits, tx.Commit(ctx)
}

// Drop removes a bucket. Dropping an absent bucket succeeds as a no-op.
func (s *Store) Drop(ctx context.Context, name string) error {
	table := pgx.Identifier{name}.Sanitize()
	_, err := s.db.Pool().Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table))
	if err != nil {
		return fmt.Errorf("failed to drop bucket %s: %w", name, err)
	}
	s.logger.Info("dropped bucket", "bucket", name)
	return nil
}

// DropAll drops a set of buckets, continuing past individual failures
func (s *Store) DropAll(ctx context.Context, names []string) error {
	var firstErr error
	for _, name := range names {
		if err := s.Drop(ctx, name); err != nil {
			s.logger.Warn("failed to drop bucket", "bucket", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
