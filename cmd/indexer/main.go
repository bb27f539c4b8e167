// Command indexer builds the clause evidence index: it embeds every policy
// clause with ollama, writes the embeddings artifact next to the clause
// metadata, and optionally mirrors the index into Qdrant.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/evidence"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/fn"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/metrics"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/ollama"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/resilience"
)

var met = metrics.New()

var (
	mClauses  = met.Counter("indexer_clauses_total", "Clauses loaded from the metadata file")
	mEmbedded = met.Counter("indexer_embeddings_total", "Clause embeddings generated")
	mRetried  = met.Counter("indexer_embed_retries_total", "Embed calls that needed a retry")
	mEmbedDur = met.Histogram("indexer_embed_seconds", "Ollama embed call time", nil)
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	clausesPath := flag.String("clauses", "data/clauses.json", "clause metadata JSON file")
	outPath := flag.String("out", "data/embeddings.json", "output embeddings JSON file")
	ollamaURL := flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
	model := flag.String("model", envOr("EMBED_MODEL", "nomic-embed-text"), "embedding model")
	qdrantAddr := flag.String("qdrant", envOr("QDRANT_URL", ""), "qdrant gRPC address (optional)")
	collection := flag.String("collection", envOr("QDRANT_COLLECTION", "claimsight"), "qdrant collection")
	workers := flag.Int("workers", 4, "parallel embed workers")
	embedRate := flag.Float64("rate", 8, "max embed calls per second")
	metricsAddr := flag.String("metrics-addr", "", "optional address to serve /metrics")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", met.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", "err", err)
			}
		}()
	}

	if err := run(ctx, *clausesPath, *outPath, *ollamaURL, *model, *qdrantAddr, *collection, *workers, *embedRate, logger); err != nil {
		logger.Error("indexing failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, clausesPath, outPath, ollamaURL, model, qdrantAddr, collection string, workers int, embedRate float64, logger *slog.Logger) error {
	clauses, err := loadClauses(clausesPath)
	if err != nil {
		return err
	}
	mClauses.Add(int64(len(clauses)))
	logger.Info("clauses loaded", "count", len(clauses), "path", clausesPath)

	client := ollama.NewClient(ollamaURL, 0)
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: embedRate, Burst: workers})

	embedOne := fn.RetryStage(fn.DefaultRetry, func(ctx context.Context, c domain.Clause) fn.Result[[]float32] {
		if err := limiter.Wait(ctx); err != nil {
			return fn.Err[[]float32](err)
		}
		started := time.Now()
		vec, err := client.Embed(ctx, model, c.Text)
		mEmbedDur.Since(started)
		if err != nil {
			mRetried.Inc()
			return fn.Err[[]float32](err)
		}
		mEmbedded.Inc()
		return fn.Ok(vec)
	})

	embedAll := fn.BatchStage(workers, embedOne)
	vectors, err := embedAll(ctx, clauses).Unwrap()
	if err != nil {
		return fmt.Errorf("embed clauses: %w", err)
	}

	if err := writeEmbeddings(outPath, vectors); err != nil {
		return err
	}
	logger.Info("embeddings written", "count", len(vectors), "path", outPath)

	index, err := evidence.New(clauses, vectors)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if qdrantAddr != "" {
		if err := mirrorToQdrant(ctx, index, qdrantAddr, collection, logger); err != nil {
			return err
		}
	}
	return nil
}

func loadClauses(path string) ([]domain.Clause, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clauses: %w", err)
	}
	var clauses []domain.Clause
	if err := json.Unmarshal(data, &clauses); err != nil {
		return nil, fmt.Errorf("parse clauses: %w", err)
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("no clauses in %s", path)
	}
	return clauses, nil
}

func writeEmbeddings(path string, vectors [][]float32) error {
	data, err := json.Marshal(vectors)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	return nil
}

func mirrorToQdrant(ctx context.Context, index *evidence.Index, addr, collection string, logger *slog.Logger) error {
	qs, err := evidence.NewQdrantStore(addr, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer qs.Close()

	if !qs.Ready(ctx) {
		return fmt.Errorf("qdrant at %s is not ready", addr)
	}
	if err := qs.EnsureCollection(ctx, index.Dims()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if err := qs.UpsertIndex(ctx, index); err != nil {
		return fmt.Errorf("upsert index: %w", err)
	}
	logger.Info("index mirrored to qdrant", "collection", collection, "points", index.Len())
	return nil
}
