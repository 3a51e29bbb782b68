package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa-ai/cli/internal/vectorstore"
)

type stubBucketStore struct {
	buckets   map[string][]vectorstore.Hit
	searched  []string
	topKAsked []int
	existsErr error
	searchErr error
}

func (s *stubBucketStore) Exists(_ context.Context, name string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.buckets[name]
	return ok, nil
}

func (s *stubBucketStore) Search(_ context.Context, name string, _ []float32, topK int) ([]vectorstore.Hit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.searched = append(s.searched, name)
	s.topKAsked = append(s.topKAsked, topK)
	return s.buckets[name], nil
}

type stubEmbedder struct {
	vector []float32
	calls  int
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	return e.vector, nil
}

func hit(content, source string, emb []float32, score float64) vectorstore.Hit {
	return vectorstore.Hit{Content: content, Source: source, Embedding: emb, Score: score}
}

func TestRetrieve_FansOutAcrossBuckets(t *testing.T) {
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{
		"col_report_pdf": {hit("chunk a", "report.pdf", []float32{1, 0}, 0.9)},
		"col_notes_txt":  {hit("chunk b", "notes.txt", []float32{0, 1}, 0.8)},
	}}
	emb := &stubEmbedder{vector: []float32{1, 0.2}}
	r := NewRetriever(store, emb, 3, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "query", []string{"col_report_pdf", "col_notes_txt"}, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.ElementsMatch(t, []string{"col_report_pdf", "col_notes_txt"}, store.searched)
	// The query is embedded once, not per bucket
	assert.Equal(t, 1, emb.calls)
}

func TestRetrieve_OverfetchesPerBucket(t *testing.T) {
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{
		"col_report_pdf": {hit("a", "report.pdf", []float32{1, 0}, 0.9)},
	}}
	r := NewRetriever(store, &stubEmbedder{vector: []float32{1, 0}}, 4, 0.5, nil)

	_, err := r.Retrieve(context.Background(), "query", []string{"col_report_pdf"}, 5)
	require.NoError(t, err)
	require.Len(t, store.topKAsked, 1)
	assert.Equal(t, 20, store.topKAsked[0])
}

func TestRetrieve_ResolvesSourceNamesToBuckets(t *testing.T) {
	// Only the sanitized bucket exists for this raw source name
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{
		vectorstore.BucketName("My Report.pdf"): {hit("a", "My Report.pdf", []float32{1, 0}, 0.9)},
	}}
	r := NewRetriever(store, &stubEmbedder{vector: []float32{1, 0}}, 3, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "query", []string{"My Report.pdf"}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].Content)
}

func TestRetrieve_SkipsUnknownSources(t *testing.T) {
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{
		"col_known": {hit("a", "known", []float32{1, 0}, 0.9)},
	}}
	r := NewRetriever(store, &stubEmbedder{vector: []float32{1, 0}}, 3, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "query", []string{"col_known", "missing"}, 2)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"col_known"}, store.searched)
}

func TestRetrieve_NoResolvableBuckets(t *testing.T) {
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{}}
	emb := &stubEmbedder{vector: []float32{1, 0}}
	r := NewRetriever(store, emb, 3, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "query", []string{"missing"}, 3)
	require.NoError(t, err)
	assert.Nil(t, docs)
	// Nothing to search, so the query is never embedded
	assert.Equal(t, 0, emb.calls)
}

func TestRetrieve_StripsEmbeddings(t *testing.T) {
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{
		"col_x": {
			{Content: "a", Source: "x", DocType: "pdf", Title: "T", Score: 0.9, Embedding: []float32{1, 0}},
		},
	}}
	r := NewRetriever(store, &stubEmbedder{vector: []float32{1, 0}}, 3, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "query", []string{"col_x"}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, Document{Content: "a", Source: "x", DocType: "pdf", Title: "T", Score: 0.9}, docs[0])
}

func TestRetrieve_RanksPooledCandidates(t *testing.T) {
	store := &stubBucketStore{buckets: map[string][]vectorstore.Hit{
		"col_a": {
			hit("close", "a", []float32{1, 0}, 0.95),
			hit("far", "a", []float32{0, 1}, 0.2),
		},
		"col_b": {
			hit("middle", "b", []float32{0.7, 0.7}, 0.6),
		},
	}}
	r := NewRetriever(store, &stubEmbedder{vector: []float32{1, 0}}, 3, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "query", []string{"col_a", "col_b"}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "close", docs[0].Content)
}
