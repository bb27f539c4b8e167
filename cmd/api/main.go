// Package main implements the ClaimSight API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ClaimSightAI/claimsight-mvp/engine/claims"
	"github.com/ClaimSightAI/claimsight-mvp/engine/evidence"
	"github.com/ClaimSightAI/claimsight-mvp/engine/explain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/extract"
	"github.com/ClaimSightAI/claimsight-mvp/engine/retrieval"
	"github.com/ClaimSightAI/claimsight-mvp/engine/store"
	"github.com/ClaimSightAI/claimsight-mvp/engine/tabular"
	"github.com/ClaimSightAI/claimsight-mvp/engine/vision"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/metrics"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/mid"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	DBDriver       string
	DBDSN          string
	OllamaURL      string
	LLMModel       string
	EmbedModel     string
	QdrantURL      string
	Collection     string
	VisionURL      string
	TabularURL     string
	NATSURL        string
	ClausesPath    string
	EmbeddingsPath string
	CORSOrigin     string
}

func loadConfig() Config {
	return Config{
		Port:           envOr("PORT", "8080"),
		DBDriver:       envOr("DB_DRIVER", "sqlite"),
		DBDSN:          envOr("DB_DSN", "claimsight.db"),
		OllamaURL:      envOr("OLLAMA_URL", "http://localhost:11434"),
		LLMModel:       envOr("LLM_MODEL", "llama3"),
		EmbedModel:     envOr("EMBED_MODEL", "nomic-embed-text"),
		QdrantURL:      envOr("QDRANT_URL", ""),
		Collection:     envOr("QDRANT_COLLECTION", "claimsight"),
		VisionURL:      envOr("VISION_URL", "http://localhost:8001"),
		TabularURL:     envOr("TABULAR_URL", "http://localhost:8002"),
		NATSURL:        envOr("NATS_URL", ""),
		ClausesPath:    envOr("CLAUSES_PATH", "data/clauses.json"),
		EmbeddingsPath: envOr("EMBEDDINGS_PATH", "data/embeddings.json"),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	claimStore := store.New(db, logger)
	if err := claimStore.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// --- Evidence index ---
	// A missing index is not fatal: retrieval degrades to empty results and
	// the rest of the pipeline keeps working.
	index, err := evidence.Load(cfg.ClausesPath, cfg.EmbeddingsPath)
	if err != nil {
		logger.Warn("evidence index unavailable, retrieval will return no clauses", "err", err)
		if index, err = evidence.New(nil, nil); err != nil {
			return fmt.Errorf("empty evidence index: %w", err)
		}
	}
	searcher := evidence.SelectSearcher(ctx, index, cfg.QdrantURL, cfg.Collection, logger)

	// --- Collaborators ---
	llm := ollama.NewClient(cfg.OllamaURL, 0)
	embedder := &modelEmbedder{client: llm, model: cfg.EmbedModel}
	retriever := retrieval.New(index, searcher, embedder, retrieval.DefaultOptions(), logger)
	analyzer := vision.NewAnalyzer(vision.NewClient(cfg.VisionURL, 0), logger)
	predictor := tabular.NewClient(cfg.TabularURL, 0)
	keywords := extract.NewKeywordExtractor(llm, cfg.LLMModel, logger)
	reasons := extract.NewReasonExtractor(llm, cfg.LLMModel, logger)
	explainer := explain.NewWriter(llm, cfg.LLMModel, logger)

	// --- NATS (optional) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats unavailable, processed events will not be published", "err", err)
		} else {
			defer nc.Close()
		}
	}

	reg := metrics.New()
	processor := claims.NewProcessor(claims.Deps{
		Store:     claimStore,
		Analyzer:  analyzer,
		Keywords:  keywords,
		Retriever: retriever,
		Predictor: predictor,
		Explainer: explainer,
		NATS:      nc,
		Metrics:   reg,
		Logger:    logger,
	})

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /api/claims", handleProcessClaim(processor, logger))
	mux.HandleFunc("GET /api/claims", handleListClaims(claimStore, logger))
	mux.HandleFunc("GET /api/claims/{id}", handleGetClaim(claimStore, logger))
	mux.HandleFunc("DELETE /api/claims/{id}", handleDeleteClaim(claimStore, logger))
	mux.HandleFunc("POST /api/decision", handleDecision())
	mux.HandleFunc("POST /api/survey/predict", handleSurveyPredict(predictor, logger))
	mux.HandleFunc("POST /api/clauses/search", handleClauseSearch(retriever, logger))
	mux.HandleFunc("POST /api/reasons/extract", handleReasonExtract(reasons))
	mux.HandleFunc("POST /api/explanation", handleExplanation(explainer))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("claimsight-api"),
		mid.RequestID(),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// modelEmbedder binds the ollama client to the configured embedding model.
type modelEmbedder struct {
	client *ollama.Client
	model  string
}

func (e *modelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, text)
}
