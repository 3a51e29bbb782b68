package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		v := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	})

	t.Run("zero vector scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
	})

	t.Run("mismatched lengths compare over shorter prefix", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{1, 0, 5, 5}
		// Only the first two components of b participate in the dot product
		assert.Greater(t, cosineSimilarity(a, b), 0.0)
	})
}

func TestSelectMMR_SeedsWithMostRelevant(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},       // irrelevant
		{1, 0.1},     // close to query
		{0.5, 0.5},   // middling
	}

	selected := selectMMR(query, candidates, 1, 0.5)
	require.Len(t, selected, 1)
	assert.Equal(t, 1, selected[0])
}

func TestSelectMMR_PenalizesRedundancy(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.8, 0.6},  // best match, seeds the selection
		{0.8, 0.6},  // exact duplicate of the seed
		{0.6, -0.8}, // less relevant but orthogonal to the seed
	}

	selected := selectMMR(query, candidates, 2, 0.5)
	require.Len(t, selected, 2)
	assert.Equal(t, 0, selected[0])
	// The duplicate loses to the diverse candidate
	assert.Equal(t, 2, selected[1])
}

func TestSelectMMR_LambdaOneIsPureRelevance(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.8, 0.6},
		{0.8, 0.6},
		{0.6, -0.8},
	}

	selected := selectMMR(query, candidates, 3, 1.0)
	require.Len(t, selected, 3)
	// With no redundancy penalty the duplicate ranks second
	assert.Equal(t, []int{0, 1, 2}, selected)
}

func TestSelectMMR_LambdaZeroIsPureDiversity(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},
		{1, 0}, // most query-similar remaining candidate, but a duplicate
		{0, 1},
	}

	selected := selectMMR(query, candidates, 2, 0)
	require.Len(t, selected, 2)
	assert.Equal(t, 0, selected[0])
	// With relevance weighted out, only distance from the seed counts
	assert.Equal(t, 2, selected[1])
}

func TestSelectMMR_KClampedToPoolSize(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{{1, 0}, {0, 1}}

	selected := selectMMR(query, candidates, 10, 0.5)
	assert.Len(t, selected, 2)
}

func TestSelectMMR_EmptyInputs(t *testing.T) {
	assert.Nil(t, selectMMR([]float32{1}, nil, 3, 0.5))
	assert.Nil(t, selectMMR([]float32{1}, [][]float32{{1}}, 0, 0.5))
}

func TestSelectMMR_TiesGoToFirstCandidate(t *testing.T) {
	query := []float32{1, 0}
	// Two identical candidates tie on every score
	candidates := [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
	}

	selected := selectMMR(query, candidates, 2, 0.5)
	require.Len(t, selected, 2)
	assert.Equal(t, 0, selected[0])
}

func TestSelectMMR_Deterministic(t *testing.T) {
	query := []float32{0.3, 0.7, 0.1}
	candidates := [][]float32{
		{0.3, 0.7, 0.1},
		{0.2, 0.8, 0.0},
		{0.9, 0.1, 0.3},
		{0.1, 0.1, 0.9},
		{0.4, 0.6, 0.2},
	}

	first := selectMMR(query, candidates, 3, 0.5)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, selectMMR(query, candidates, 3, 0.5))
	}
}
