package evidence

import (
	"context"
	"log/slog"
)

// Searcher ranks a restricted candidate set by vector similarity.
// Implemented by QdrantStore (indexed) and LinearSearcher (brute force).
type Searcher interface {
	Search(ctx context.Context, vector []float32, candidates []int, topK int) ([]Hit, error)
}

// SelectSearcher picks the search backend once at startup: the Qdrant
// collection when it is configured and reachable, otherwise an exact
// linear scan over the loaded artifact. The choice is fixed for the
// process lifetime.
func SelectSearcher(ctx context.Context, index *Index, qdrantAddr, collection string, logger *slog.Logger) Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	if qdrantAddr != "" {
		store, err := NewQdrantStore(qdrantAddr, collection)
		if err != nil {
			logger.Warn("evidence: qdrant unavailable, using linear scan", "addr", qdrantAddr, "err", err)
			return NewLinearSearcher(index)
		}
		if !store.Ready(ctx) {
			logger.Warn("evidence: qdrant collection missing, using linear scan", "collection", collection)
			store.Close()
			return NewLinearSearcher(index)
		}
		logger.Info("evidence: using qdrant search backend", "collection", collection)
		return store
	}
	logger.Info("evidence: using linear-scan search backend", "clauses", index.Len())
	return NewLinearSearcher(index)
}
