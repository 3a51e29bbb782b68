package documents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa-ai/cli/internal/vectorstore"
)

type stubInserter struct {
	bucket   string
	contents []string
	metas    []vectorstore.ChunkMeta
}

func (s *stubInserter) Insert(_ context.Context, name string, contents []string, _ [][]float32, metas []vectorstore.ChunkMeta) error {
	s.bucket = name
	s.contents = contents
	s.metas = metas
	return nil
}

type stubLinker struct {
	name      string
	docType   string
	namespace string
}

func (s *stubLinker) AddDocument(_ context.Context, _ uuid.UUID, name, docType, namespace string) error {
	s.name = name
	s.docType = docType
	s.namespace = namespace
	return nil
}

type stubBatchEmbedder struct{}

func (stubBatchEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func TestSplitText_RespectsChunkSize(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, 100, 20, nil)

	text := strings.Repeat("word ", 200)
	chunks := p.splitText(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		// A chunk may exceed the limit only by the final word
		assert.LessOrEqual(t, len(chunk), 100+len("word"))
		assert.NotEmpty(t, chunk)
	}
}

func TestSplitText_OverlapsChunks(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, 60, 50, nil)

	words := make([]string, 40)
	for i := range words {
		words[i] = string(rune('a'+i%26)) + "123"
	}
	chunks := p.splitText(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		nextWords := strings.Fields(chunks[i])
		overlap := len(prevWords) * 50 / 100
		require.Greater(t, overlap, 0)
		assert.Equal(t, prevWords[len(prevWords)-overlap:], nextWords[:overlap])
	}
}

func TestSplitText_Empty(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, 100, 20, nil)
	assert.Nil(t, p.splitText(""))
	assert.Nil(t, p.splitText("   \n\t"))
}

func TestSplitText_SingleShortInput(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, 100, 20, nil)
	chunks := p.splitText("just a few words")
	assert.Equal(t, []string{"just a few words"}, chunks)
}

func TestIngestFile_ShortTextSingleChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("a short note about nothing"), 0644))

	inserter := &stubInserter{}
	linker := &stubLinker{}
	p := NewProcessor(inserter, linker, stubBatchEmbedder{}, nil, 1000, 20, nil)

	count, err := p.IngestFile(context.Background(), uuid.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, []string{"a short note about nothing"}, inserter.contents)
	assert.Equal(t, vectorstore.BucketName("notes.txt"), inserter.bucket)
	require.Len(t, inserter.metas, 1)
	assert.Equal(t, "notes.txt", inserter.metas[0].Source)
	assert.Equal(t, "text", inserter.metas[0].DocType)

	assert.Equal(t, "notes.txt", linker.name)
	assert.Equal(t, "text", linker.docType)
	assert.Equal(t, inserter.bucket, linker.namespace)
}

func TestIngestFile_LongTextIsChunked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("lorem ipsum dolor ", 300)), 0644))

	inserter := &stubInserter{}
	p := NewProcessor(inserter, &stubLinker{}, stubBatchEmbedder{}, nil, 500, 20, nil)

	count, err := p.IngestFile(context.Background(), uuid.New(), path)
	require.NoError(t, err)
	assert.Greater(t, count, 1)
	assert.Len(t, inserter.contents, count)
}

func TestIngestFile_UnsupportedExtension(t *testing.T) {
	p := NewProcessor(&stubInserter{}, &stubLinker{}, stubBatchEmbedder{}, nil, 1000, 20, nil)

	_, err := p.IngestFile(context.Background(), uuid.New(), "slides.pptx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestIngestFile_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0644))

	p := NewProcessor(&stubInserter{}, &stubLinker{}, stubBatchEmbedder{}, nil, 1000, 20, nil)

	_, err := p.IngestFile(context.Background(), uuid.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}
