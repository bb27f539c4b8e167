// Package claims orchestrates the adjudication pipeline: image analysis,
// keyword extraction, clause retrieval, the decision rules, explanation
// generation, and persistence. Collaborator stages degrade individually;
// only validation and persistence can fail a claim.
package claims

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/ClaimSightAI/claimsight-mvp/engine/decision"
	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/explain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/extract"
	"github.com/ClaimSightAI/claimsight-mvp/engine/store"
	"github.com/ClaimSightAI/claimsight-mvp/engine/tabular"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/fn"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/metrics"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/natsutil"
)

// SubjectClaimProcessed is the NATS subject announcing finished claims.
const SubjectClaimProcessed = "claims.processed"

// ProcessedEvent is published after a claim reaches a terminal verdict.
type ProcessedEvent struct {
	EventID       string `json:"event_id"`
	ClaimID       int64  `json:"claim_id"`
	FinalDecision string `json:"final_decision"`
	RiskLevel     string `json:"risk_level"`
	Company       string `json:"company"`
	PolicyType    string `json:"policy_type"`
}

// ImageAnalyzer aggregates damage findings over a claim's images.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, imagePaths []string) (domain.ImageFindings, error)
}

// KeywordExtractor pulls structured keywords out of the description.
type KeywordExtractor interface {
	Extract(ctx context.Context, description string) (extract.Keywords, error)
}

// ClauseRetriever performs reason-aware clause retrieval.
type ClauseRetriever interface {
	ReasonAware(ctx context.Context, query, insurer, category string) (domain.RetrievalResult, error)
}

// Explainer writes the claim assessment. Never fails.
type Explainer interface {
	Generate(ctx context.Context, req explain.Request) string
}

// ClaimStore is the persistence surface the pipeline needs.
type ClaimStore interface {
	CreateClaim(ctx context.Context, in domain.ClaimInput) (*store.Claim, error)
	FinalizeClaim(ctx context.Context, claimID int64, p store.FinalizeParams) error
	MarkError(ctx context.Context, claimID int64) error
}

// Processor runs the adjudication pipeline for one claim at a time.
type Processor struct {
	store     ClaimStore
	analyzer  ImageAnalyzer
	keywords  KeywordExtractor
	retriever ClauseRetriever
	predictor tabular.Predictor
	explainer Explainer
	nc        *nats.Conn // optional
	reg       *metrics.Registry
	log       *slog.Logger
}

// Deps bundles the pipeline collaborators. nc may be nil to skip event
// publishing; predictor may be nil to skip survey scoring.
type Deps struct {
	Store     ClaimStore
	Analyzer  ImageAnalyzer
	Keywords  KeywordExtractor
	Retriever ClauseRetriever
	Predictor tabular.Predictor
	Explainer Explainer
	NATS      *nats.Conn
	Metrics   *metrics.Registry
	Logger    *slog.Logger
}

func NewProcessor(d Deps) *Processor {
	reg := d.Metrics
	if reg == nil {
		reg = metrics.New()
	}
	return &Processor{
		store:     d.Store,
		analyzer:  d.Analyzer,
		keywords:  d.Keywords,
		retriever: d.Retriever,
		predictor: d.Predictor,
		explainer: d.Explainer,
		nc:        d.NATS,
		reg:       reg,
		log:       d.Logger,
	}
}

// stageFailed logs and counts a degraded stage.
func (p *Processor) stageFailed(stage string, claimID int64) func(context.Context, error) {
	return func(_ context.Context, err error) {
		p.log.Warn("pipeline stage degraded", "stage", stage, "claim_id", claimID, "error", err)
		p.reg.Counter(
			metrics.WithLabels("claim_stage_errors_total", "stage", stage),
			"Pipeline stages that fell back to their default",
		).Inc()
	}
}

// queryInputs couples extracted keywords with the retrieval query built
// from them.
type queryInputs struct {
	keywords extract.Keywords
	query    string
}

// Process adjudicates one claim end to end and persists the outcome.
// Validation errors and persistence failures are the only fatal paths.
func (p *Processor) Process(ctx context.Context, in domain.ClaimInput) (*domain.ClaimResult, error) {
	started := time.Now()
	if err := domain.ValidateClaimInput(in); err != nil {
		return nil, err
	}

	claimID, err := p.ensureClaimRow(ctx, in)
	if err != nil {
		return nil, err
	}
	log := p.log.With("claim_id", claimID)

	// Image analysis. Skipped entirely when no images were uploaded; a
	// detector failure degrades to inconclusive findings.
	var findings *domain.ImageFindings
	if len(in.ImagePaths) > 0 {
		imageStage := fn.Degrade(
			fn.TracedStage("image_analysis", func(ctx context.Context, paths []string) fn.Result[domain.ImageFindings] {
				return fn.FromPair(p.analyzer.Analyze(ctx, paths))
			}),
			domain.InconclusiveFindings("image analysis unavailable"),
			p.stageFailed("image", claimID),
		)
		f, _ := imageStage(ctx, in.ImagePaths).Unwrap()
		findings = &f
	}

	// Keyword extraction feeds the retrieval query; failure means we
	// search on the description alone. One stage yields both so the
	// keywords survive for persistence.
	queryStage := fn.Degrade(
		fn.Then(
			fn.TracedStage("keywords", func(ctx context.Context, desc string) fn.Result[extract.Keywords] {
				return fn.FromPair(p.keywords.Extract(ctx, desc))
			}),
			fn.MapStage(func(kw extract.Keywords) queryInputs {
				return queryInputs{
					keywords: kw,
					query:    strings.TrimSpace(in.Description + " " + strings.Join(kw.Keywords, " ")),
				}
			}),
		),
		queryInputs{query: strings.TrimSpace(in.Description)},
		p.stageFailed("keywords", claimID),
	)
	kq, _ := queryStage(ctx, in.Description).Unwrap()
	kw, query := kq.keywords, kq.query

	retrievalStage := fn.Degrade(
		fn.TracedStage("retrieval", func(ctx context.Context, q string) fn.Result[domain.RetrievalResult] {
			return fn.FromPair(p.retriever.ReasonAware(ctx, q, in.Insurer, in.Category))
		}),
		domain.RetrievalResult{},
		p.stageFailed("retrieval", claimID),
	)
	retrieved, _ := retrievalStage(ctx, query).Unwrap()

	// The rules see the survey exactly as the caller submitted it. The
	// model prediction computed below is persisted for analytics only.
	var imageForRules domain.ImageFindings
	if findings != nil {
		imageForRules = *findings
	}
	dec := decision.Decide(in.Survey, imageForRules)

	survey := in.Survey
	if p.predictor != nil && !survey.HasPrediction() {
		pred, err := p.predictor.Predict(ctx, tabular.BuildFeatures(survey))
		if err != nil {
			p.stageFailed("tabular", claimID)(ctx, err)
		} else {
			survey.Prediction = &pred.Prediction
			survey.Probability = &pred.Probability
		}
	}

	selected := retrieved.Combined(5)
	explanation := p.explainer.Generate(ctx, explain.Request{
		Insurer:  in.Insurer,
		Category: in.Category,
		Reasons:  dec.Reasons,
		Clauses:  selected,
		Findings: findings,
	})

	err = p.store.FinalizeClaim(ctx, claimID, store.FinalizeParams{
		Decision:    dec,
		Survey:      survey,
		Findings:    findings,
		ImagePaths:  in.ImagePaths,
		Keywords:    kw,
		Clauses:     selected,
		Explanation: explanation,
	})
	if err != nil {
		log.Error("persisting claim failed", "error", err)
		if markErr := p.store.MarkError(ctx, claimID); markErr != nil {
			log.Error("marking claim as errored failed", "error", markErr)
		}
		return nil, fmt.Errorf("finalize claim %d: %w", claimID, err)
	}

	p.publishProcessed(ctx, claimID, in, dec)
	p.reg.Counter(
		metrics.WithLabels("claims_processed_total", "verdict", string(dec.FinalDecision)),
		"Claims adjudicated by final verdict",
	).Inc()
	p.reg.Histogram("claim_processing_seconds", "End to end claim processing time", nil).Since(started)
	log.Info("claim processed", "verdict", dec.FinalDecision, "risk", dec.RiskLevel, "duration", time.Since(started))

	result := &domain.ClaimResult{
		ClaimID:       claimID,
		FinalDecision: dec.FinalDecision,
		RiskLevel:     dec.RiskLevel,
		Reasons:       dec.Reasons,
		ClausesUsed:   selected,
		Explanation:   explanation,
		CreatedAt:     started,
	}
	if findings != nil {
		result.ImageResult = *findings
	}
	return result, nil
}

// ensureClaimRow reuses a caller-supplied claim id or creates the
// PROCESSING checkpoint row.
func (p *Processor) ensureClaimRow(ctx context.Context, in domain.ClaimInput) (int64, error) {
	if in.ClaimID != nil {
		return *in.ClaimID, nil
	}
	claim, err := p.store.CreateClaim(ctx, in)
	if err != nil {
		return 0, err
	}
	return claim.ID, nil
}

// publishProcessed announces the verdict on NATS. Best effort.
func (p *Processor) publishProcessed(ctx context.Context, claimID int64, in domain.ClaimInput, dec domain.Decision) {
	if p.nc == nil {
		return
	}
	evt := ProcessedEvent{
		EventID:       uuid.NewString(),
		ClaimID:       claimID,
		FinalDecision: string(dec.FinalDecision),
		RiskLevel:     string(dec.RiskLevel),
		Company:       in.Insurer,
		PolicyType:    in.Category,
	}
	if err := natsutil.Publish(ctx, p.nc, SubjectClaimProcessed, evt); err != nil {
		p.log.Warn("publishing processed event failed", "claim_id", claimID, "error", err)
	}
}
