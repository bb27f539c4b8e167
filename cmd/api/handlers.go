package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/ClaimSightAI/claimsight-mvp/engine/claims"
	"github.com/ClaimSightAI/claimsight-mvp/engine/decision"
	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/explain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/extract"
	"github.com/ClaimSightAI/claimsight-mvp/engine/retrieval"
	"github.com/ClaimSightAI/claimsight-mvp/engine/store"
	"github.com/ClaimSightAI/claimsight-mvp/engine/tabular"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleProcessClaim runs the full adjudication pipeline.
func handleProcessClaim(p *claims.Processor, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.ClaimInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := p.Process(r.Context(), in)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) || errors.Is(err, domain.ErrInvalidClaim) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("claim processing failed", "err", err)
			writeError(w, http.StatusInternalServerError, "claim processing failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleListClaims(s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var userID *int64
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid user_id")
				return
			}
			userID = &id
		}

		list, err := s.ListClaims(r.Context(), userID)
		if err != nil {
			logger.Error("listing claims failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"claims": list})
	}
}

func claimIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// claimDetail is the get-by-id payload: the claim with all artifacts plus
// the rows a display should consult, which are the newest of each kind.
type claimDetail struct {
	*store.Claim
	LatestSurvey      *store.ClaimSurvey      `json:"latest_survey,omitempty"`
	LatestExplanation *store.ClaimExplanation `json:"latest_explanation,omitempty"`
}

func handleGetClaim(s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := claimIDFromPath(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid claim id")
			return
		}

		claim, err := s.GetClaim(r.Context(), id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "claim not found")
			return
		}
		if err != nil {
			logger.Error("loading claim failed", "err", err, "claim_id", id)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, claimDetail{
			Claim:             claim,
			LatestSurvey:      claim.LatestSurvey(),
			LatestExplanation: claim.LatestExplanation(),
		})
	}
}

func handleDeleteClaim(s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := claimIDFromPath(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid claim id")
			return
		}
		if err := s.DeleteClaim(r.Context(), id); err != nil {
			logger.Error("deleting claim failed", "err", err, "claim_id", id)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// DecisionRequest evaluates the decision rules without persistence.
type DecisionRequest struct {
	Survey domain.SurveyFacts   `json:"survey_result"`
	Image  domain.ImageFindings `json:"image_result"`
}

func handleDecision() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		writeJSON(w, http.StatusOK, decision.Decide(req.Survey, req.Image))
	}
}

// SurveyPredictRequest scores survey answers with the tabular model.
type SurveyPredictRequest struct {
	Survey domain.SurveyFacts `json:"survey_result"`
}

func handleSurveyPredict(predictor tabular.Predictor, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SurveyPredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pred, err := predictor.Predict(r.Context(), tabular.BuildFeatures(req.Survey))
		if err != nil {
			var mfe *tabular.MissingFieldsError
			if errors.As(err, &mfe) {
				// Missing answers are a structured result, not a failure.
				writeJSON(w, http.StatusUnprocessableEntity, mfe)
				return
			}
			logger.Warn("survey prediction failed", "err", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pred)
	}
}

// ClauseSearchRequest runs reason-aware clause retrieval.
type ClauseSearchRequest struct {
	Query      string `json:"query"`
	Company    string `json:"company"`
	PolicyType string `json:"policy_type"`
}

func handleClauseSearch(retriever *retrieval.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClauseSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}

		result, err := retriever.ReasonAware(r.Context(), req.Query, req.Company, req.PolicyType)
		if err != nil {
			logger.Error("clause retrieval failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ReasonExtractRequest identifies rejection reasons in claim text.
type ReasonExtractRequest struct {
	Text string `json:"text"`
}

func handleReasonExtract(extractor *extract.ReasonExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReasonExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		findings := extractor.ExtractRejectionReasons(r.Context(), req.Text)
		writeJSON(w, http.StatusOK, map[string]any{"rejection_reasons": findings})
	}
}

// ExplanationRequest generates a standalone claim assessment.
type ExplanationRequest struct {
	Company    string                `json:"company"`
	PolicyType string                `json:"policy_type"`
	Reasons    []string              `json:"reasons"`
	Clauses    []domain.Clause       `json:"clauses"`
	Findings   *domain.ImageFindings `json:"image_findings,omitempty"`
}

func handleExplanation(writer *explain.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExplanationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		text := writer.Generate(r.Context(), explain.Request{
			Insurer:  req.Company,
			Category: req.PolicyType,
			Reasons:  req.Reasons,
			Clauses:  req.Clauses,
			Findings: req.Findings,
		})
		writeJSON(w, http.StatusOK, map[string]string{"explanation": text})
	}
}
