package rag

import "math"

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths compare over the shorter prefix; zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// selectMMR picks up to k candidates by Maximal Marginal Relevance and
// returns their indexes in selection order. lambda weighs query relevance
// against redundancy with already-selected candidates: a candidate close
// to a previous pick is penalized even when it matches the query well.
// Ties go to the first-encountered candidate, so the selection is
// deterministic for a fixed input order.
func selectMMR(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	simToQuery := make([]float64, len(candidates))
	for i, c := range candidates {
		simToQuery[i] = cosineSimilarity(query, c)
	}

	selected := make([]int, 0, k)
	remaining := make(map[int]bool, len(candidates))
	for i := range candidates {
		remaining[i] = true
	}

	// Seed with the single most query-similar candidate
	best := -1
	for i := range candidates {
		if best == -1 || simToQuery[i] > simToQuery[best] {
			best = i
		}
	}
	selected = append(selected, best)
	delete(remaining, best)

	for len(selected) < k && len(remaining) > 0 {
		best = -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if !remaining[i] {
				continue
			}
			maxSimToSelected := math.Inf(-1)
			for _, s := range selected {
				if sim := cosineSimilarity(candidates[i], candidates[s]); sim > maxSimToSelected {
					maxSimToSelected = sim
				}
			}
			score := lambda*simToQuery[i] - (1-lambda)*maxSimToSelected
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best == -1 {
			break
		}
		selected = append(selected, best)
		delete(remaining, best)
	}

	return selected
}
