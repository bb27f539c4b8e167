package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
)

// Open connects to the claims database. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
}

// Store persists claims and adjudication artifacts.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

func New(db *gorm.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Migrate creates or updates the claim tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Claim{}, &ClaimSurvey{}, &ClaimImage{}, &ClaimExplanation{})
}

// CreateClaim writes the initial claim row with a PROCESSING checkpoint, so
// a crash mid-pipeline leaves an inspectable row rather than nothing.
func (s *Store) CreateClaim(ctx context.Context, in domain.ClaimInput) (*Claim, error) {
	claim := &Claim{
		UserID:        in.UserID,
		Company:       in.Insurer,
		PolicyType:    in.Category,
		Description:   in.Description,
		FinalDecision: string(domain.StatusProcessing),
	}
	if err := s.db.WithContext(ctx).Create(claim).Error; err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	return claim, nil
}

// FinalizeParams carries everything the pipeline produced for one claim.
type FinalizeParams struct {
	Decision    domain.Decision
	Survey      domain.SurveyFacts
	Findings    *domain.ImageFindings
	ImagePaths  []string
	Keywords    any
	Clauses     []domain.Clause
	Explanation string
}

// FinalizeClaim writes the verdict and all artifacts in one transaction:
// claim verdict and risk, survey payload with prediction, one image row per
// uploaded image carrying the shared findings blob, and the explanation.
func (s *Store) FinalizeClaim(ctx context.Context, claimID int64, p FinalizeParams) error {
	surveyPayload, err := json.Marshal(p.Survey)
	if err != nil {
		return fmt.Errorf("encode survey payload: %w", err)
	}
	keywordsJSON, err := json.Marshal(p.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	clausesJSON, err := json.Marshal(p.Clauses)
	if err != nil {
		return fmt.Errorf("encode clauses: %w", err)
	}
	var findingsJSON []byte
	if p.Findings != nil {
		if findingsJSON, err = json.Marshal(p.Findings); err != nil {
			return fmt.Errorf("encode image findings: %w", err)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"final_decision": string(p.Decision.FinalDecision),
			"risk_level":     string(p.Decision.RiskLevel),
		}
		if err := tx.Model(&Claim{}).Where("id = ?", claimID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update claim verdict: %w", err)
		}

		survey := ClaimSurvey{
			ClaimID:           claimID,
			SurveyPayload:     surveyPayload,
			SurveyPrediction:  p.Survey.Prediction,
			SurveyProbability: p.Survey.Probability,
		}
		if err := tx.Create(&survey).Error; err != nil {
			return fmt.Errorf("save survey: %w", err)
		}

		for _, path := range p.ImagePaths {
			img := ClaimImage{
				ClaimID:     claimID,
				ImageResult: findingsJSON,
				Filename:    filepath.Base(path),
			}
			if err := tx.Create(&img).Error; err != nil {
				return fmt.Errorf("save image row: %w", err)
			}
		}

		expl := ClaimExplanation{
			ClaimID:           claimID,
			ExtractedKeywords: keywordsJSON,
			ClausesUsed:       clausesJSON,
			ExplanationText:   p.Explanation,
		}
		if err := tx.Create(&expl).Error; err != nil {
			return fmt.Errorf("save explanation: %w", err)
		}
		return nil
	})
}

// MarkError stamps the claim as failed. Called when a fatal pipeline stage
// (persistence aside) cannot be degraded.
func (s *Store) MarkError(ctx context.Context, claimID int64) error {
	return s.db.WithContext(ctx).
		Model(&Claim{}).
		Where("id = ?", claimID).
		Update("final_decision", string(domain.VerdictError)).Error
}

// GetClaim loads one claim with all artifacts.
func (s *Store) GetClaim(ctx context.Context, id int64) (*Claim, error) {
	var claim Claim
	err := s.db.WithContext(ctx).
		Preload("Surveys").
		Preload("Images").
		Preload("Explanations").
		First(&claim, id).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ListClaims returns claims newest first, optionally filtered by user.
func (s *Store) ListClaims(ctx context.Context, userID *int64) ([]Claim, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var claims []Claim
	if err := q.Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// DeleteClaim removes the claim and its artifacts.
func (s *Store) DeleteClaim(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&ClaimSurvey{}, &ClaimImage{}, &ClaimExplanation{}} {
			if err := tx.Where("claim_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Claim{}, id).Error
	})
}
