package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	// A named in-memory database per test; a shared anonymous one would
	// leak rows between tests in the same process.
	db, err := Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestNamedMemoryDatabasesAreIsolated(t *testing.T) {
	s := testStore(t)
	if _, err := s.CreateClaim(context.Background(), sampleInput()); err != nil {
		t.Fatalf("create: %v", err)
	}

	db, err := Open("sqlite", "file:"+t.Name()+"_other?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	other := New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := other.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	list, err := other.ListClaims(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty database, got %d claims", len(list))
	}
}

func sampleInput() domain.ClaimInput {
	return domain.ClaimInput{
		Description: "Rear-ended at a toll booth, trunk crushed",
		Insurer:     "Acko",
		Category:    "Two Wheeler",
	}
}

func TestCreateClaimProcessingCheckpoint(t *testing.T) {
	s := testStore(t)
	claim, err := s.CreateClaim(context.Background(), sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	if claim.ID == 0 {
		t.Fatal("claim id not assigned")
	}
	if claim.FinalDecision != string(domain.StatusProcessing) {
		t.Fatalf("final_decision = %q", claim.FinalDecision)
	}
}

func TestLatestRowsAfterReprocessing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	claim, err := s.CreateClaim(ctx, sampleInput())
	if err != nil {
		t.Fatal(err)
	}

	first := "APPROVED"
	second := "REJECTED"
	for _, pred := range []string{first, second} {
		p := pred
		err := s.FinalizeClaim(ctx, claim.ID, FinalizeParams{
			Decision:    domain.Decision{FinalDecision: domain.VerdictApproved, RiskLevel: domain.RiskLow},
			Survey:      domain.SurveyFacts{Prediction: &p},
			Explanation: "assessment for " + p,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetClaim(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Surveys) != 2 || len(got.Explanations) != 2 {
		t.Fatalf("surveys = %d explanations = %d", len(got.Surveys), len(got.Explanations))
	}

	survey := got.LatestSurvey()
	if survey == nil || *survey.SurveyPrediction != second {
		t.Errorf("latest survey = %+v", survey)
	}
	expl := got.LatestExplanation()
	if expl == nil || expl.ExplanationText != "assessment for "+second {
		t.Errorf("latest explanation = %+v", expl)
	}

	var empty Claim
	if empty.LatestSurvey() != nil || empty.LatestExplanation() != nil {
		t.Error("expected nil latest rows on a claim without artifacts")
	}
}

func TestFinalizeClaimWritesAllArtifacts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	claim, err := s.CreateClaim(ctx, sampleInput())
	if err != nil {
		t.Fatal(err)
	}

	pred := "REJECTED"
	prob := 0.213
	findings := domain.InconclusiveFindings("detector unavailable")
	err = s.FinalizeClaim(ctx, claim.ID, FinalizeParams{
		Decision: domain.Decision{
			FinalDecision: domain.VerdictRejected,
			RiskLevel:     domain.RiskHigh,
			Reasons:       []string{"Driver Alcohol Intoxication Detected"},
		},
		Survey:      domain.SurveyFacts{Prediction: &pred, Probability: &prob},
		Findings:    &findings,
		ImagePaths:  []string{"/uploads/a.jpg", "/uploads/b.jpg"},
		Keywords:    map[string]any{"incident_type": "collision"},
		Clauses:     []domain.Clause{{Insurer: "Acko", Text: "Alcohol exclusion clause."}},
		Explanation: "## Explanation\nRejected due to intoxication.",
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetClaim(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FinalDecision != string(domain.VerdictRejected) || got.RiskLevel != string(domain.RiskHigh) {
		t.Errorf("verdict = %q risk = %q", got.FinalDecision, got.RiskLevel)
	}
	if len(got.Surveys) != 1 {
		t.Fatalf("surveys = %d", len(got.Surveys))
	}
	if *got.Surveys[0].SurveyPrediction != "REJECTED" || *got.Surveys[0].SurveyProbability != 0.213 {
		t.Errorf("survey row = %+v", got.Surveys[0])
	}
	if len(got.Images) != 2 {
		t.Fatalf("images = %d", len(got.Images))
	}
	if got.Images[0].Filename != "a.jpg" || got.Images[1].Filename != "b.jpg" {
		t.Errorf("filenames = %q %q", got.Images[0].Filename, got.Images[1].Filename)
	}
	var storedFindings domain.ImageFindings
	if err := json.Unmarshal(got.Images[0].ImageResult, &storedFindings); err != nil {
		t.Fatalf("findings blob: %v", err)
	}
	if storedFindings.EvidenceStrength != domain.EvidenceNone {
		t.Errorf("findings = %+v", storedFindings)
	}
	if len(got.Explanations) != 1 {
		t.Fatalf("explanations = %d", len(got.Explanations))
	}
	if got.Explanations[0].ExplanationText == "" {
		t.Error("explanation text missing")
	}
}

func TestMarkError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	claim, err := s.CreateClaim(ctx, sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MarkError(ctx, claim.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetClaim(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FinalDecision != string(domain.VerdictError) {
		t.Fatalf("final_decision = %q", got.FinalDecision)
	}
}

func TestListClaimsFiltersByUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	alice, bob := int64(1), int64(2)
	in := sampleInput()
	in.UserID = &alice
	if _, err := s.CreateClaim(ctx, in); err != nil {
		t.Fatal(err)
	}
	in.UserID = &bob
	if _, err := s.CreateClaim(ctx, in); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListClaims(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d", len(all))
	}

	mine, err := s.ListClaims(ctx, &alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || *mine[0].UserID != alice {
		t.Fatalf("mine = %+v", mine)
	}
}

func TestDeleteClaimRemovesArtifacts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	claim, err := s.CreateClaim(ctx, sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	err = s.FinalizeClaim(ctx, claim.ID, FinalizeParams{
		Decision:   domain.Decision{FinalDecision: domain.VerdictApproved, RiskLevel: domain.RiskLow},
		ImagePaths: []string{"/uploads/a.jpg"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteClaim(ctx, claim.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetClaim(ctx, claim.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v", err)
	}

	var count int64
	if err := s.db.Model(&ClaimImage{}).Where("claim_id = ?", claim.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("orphan image rows = %d", count)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatal("expected error")
	}
}
