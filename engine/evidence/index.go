// Package evidence owns the static clause index the retrieval engine
// queries: clause metadata plus a parallel embedding matrix, both keyed by
// the same ordinal, loaded once at startup and read-only afterwards.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
)

// Index is the in-memory clause artifact. Safe for concurrent reads; never
// mutated after Load.
type Index struct {
	clauses []domain.Clause
	vectors [][]float32
	dims    int
}

// Load reads the clause metadata and the parallel embedding matrix.
// The two files are ordinal-aligned; Load fails on any mismatch rather
// than serving a skewed index.
func Load(metaPath, embPath string) (*Index, error) {
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("evidence: read metadata %s: %w", metaPath, err)
	}
	var clauses []domain.Clause
	if err := json.Unmarshal(metaRaw, &clauses); err != nil {
		return nil, fmt.Errorf("evidence: parse metadata: %w", err)
	}

	embRaw, err := os.ReadFile(embPath)
	if err != nil {
		return nil, fmt.Errorf("evidence: read embeddings %s: %w", embPath, err)
	}
	var vectors [][]float32
	if err := json.Unmarshal(embRaw, &vectors); err != nil {
		return nil, fmt.Errorf("evidence: parse embeddings: %w", err)
	}

	return New(clauses, vectors)
}

// New builds an Index from already-parsed clauses and vectors.
func New(clauses []domain.Clause, vectors [][]float32) (*Index, error) {
	if len(clauses) != len(vectors) {
		return nil, fmt.Errorf("evidence: %d clauses but %d vectors", len(clauses), len(vectors))
	}
	dims := 0
	for i, v := range vectors {
		if dims == 0 {
			dims = len(v)
		}
		if len(v) != dims {
			return nil, fmt.Errorf("evidence: vector %d has %d dims, want %d", i, len(v), dims)
		}
	}
	return &Index{clauses: clauses, vectors: vectors, dims: dims}, nil
}

// Len returns the number of clause records.
func (ix *Index) Len() int { return len(ix.clauses) }

// Dims returns the embedding dimensionality, 0 for an empty index.
func (ix *Index) Dims() int { return ix.dims }

// Clause returns the record at the given ordinal.
func (ix *Index) Clause(ordinal int) domain.Clause { return ix.clauses[ordinal] }

// Vector returns the embedding at the given ordinal.
func (ix *Index) Vector(ordinal int) []float32 { return ix.vectors[ordinal] }

// Restrict returns the ordinals whose clause matches the insurer/category
// pair. With fold set the comparison is case-insensitive.
func (ix *Index) Restrict(insurer, category string, fold bool) []int {
	var out []int
	for i, c := range ix.clauses {
		if fold {
			if strings.EqualFold(c.Insurer, insurer) && strings.EqualFold(c.PolicyCategory, category) {
				out = append(out, i)
			}
		} else if c.Insurer == insurer && c.PolicyCategory == category {
			out = append(out, i)
		}
	}
	return out
}

// Hit is one nearest-neighbor match: the clause ordinal and its squared
// Euclidean distance to the query (smaller is closer).
type Hit struct {
	Ordinal  int
	Distance float32
}
