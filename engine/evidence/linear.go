package evidence

import (
	"context"
	"fmt"
	"sort"
)

// LinearSearcher ranks candidates by exact brute-force squared Euclidean
// distance over the in-memory embedding matrix. It is the degraded search
// backend used when no vector index is available; cost is bounded by the
// size of the restricted candidate set.
type LinearSearcher struct {
	index *Index
}

// NewLinearSearcher creates a brute-force searcher over the loaded index.
func NewLinearSearcher(index *Index) *LinearSearcher {
	return &LinearSearcher{index: index}
}

// Search returns the topK candidate ordinals closest to vector, ascending
// by distance. Ties keep the candidates' original order (stable sort), so
// identical inputs always produce identical rankings.
func (s *LinearSearcher) Search(_ context.Context, vector []float32, candidates []int, topK int) ([]Hit, error) {
	if len(vector) != s.index.Dims() && s.index.Len() > 0 {
		return nil, fmt.Errorf("evidence: query has %d dims, index has %d", len(vector), s.index.Dims())
	}

	hits := make([]Hit, 0, len(candidates))
	for _, ord := range candidates {
		hits = append(hits, Hit{Ordinal: ord, Distance: sqDist(vector, s.index.Vector(ord))})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func sqDist(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
