package claims

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/explain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/extract"
	"github.com/ClaimSightAI/claimsight-mvp/engine/store"
	"github.com/ClaimSightAI/claimsight-mvp/engine/tabular"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStore struct {
	nextID      int64
	created     []domain.ClaimInput
	finalized   map[int64]store.FinalizeParams
	errored     []int64
	finalizeErr error
}

func newMockStore() *mockStore {
	return &mockStore{nextID: 100, finalized: make(map[int64]store.FinalizeParams)}
}

func (m *mockStore) CreateClaim(_ context.Context, in domain.ClaimInput) (*store.Claim, error) {
	m.nextID++
	m.created = append(m.created, in)
	return &store.Claim{ID: m.nextID, FinalDecision: string(domain.StatusProcessing)}, nil
}

func (m *mockStore) FinalizeClaim(_ context.Context, claimID int64, p store.FinalizeParams) error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	m.finalized[claimID] = p
	return nil
}

func (m *mockStore) MarkError(_ context.Context, claimID int64) error {
	m.errored = append(m.errored, claimID)
	return nil
}

type mockAnalyzer struct {
	findings domain.ImageFindings
	err      error
	paths    []string
}

func (m *mockAnalyzer) Analyze(_ context.Context, paths []string) (domain.ImageFindings, error) {
	m.paths = paths
	return m.findings, m.err
}

type mockKeywords struct {
	kw  extract.Keywords
	err error
}

func (m *mockKeywords) Extract(context.Context, string) (extract.Keywords, error) {
	return m.kw, m.err
}

type mockRetriever struct {
	result domain.RetrievalResult
	err    error
	query  string
}

func (m *mockRetriever) ReasonAware(_ context.Context, query, _, _ string) (domain.RetrievalResult, error) {
	m.query = query
	return m.result, m.err
}

type mockPredictor struct {
	pred tabular.Prediction
	err  error
}

func (m *mockPredictor) Predict(context.Context, tabular.Features) (tabular.Prediction, error) {
	return m.pred, m.err
}

type mockExplainer struct {
	text string
	req  explain.Request
}

func (m *mockExplainer) Generate(_ context.Context, req explain.Request) string {
	m.req = req
	if m.text == "" {
		return explain.FallbackText
	}
	return m.text
}

type fixture struct {
	store     *mockStore
	analyzer  *mockAnalyzer
	keywords  *mockKeywords
	retriever *mockRetriever
	predictor *mockPredictor
	explainer *mockExplainer
	proc      *Processor
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMockStore(),
		analyzer:  &mockAnalyzer{},
		keywords:  &mockKeywords{kw: extract.Keywords{Keywords: []string{"bumper"}}},
		retriever: &mockRetriever{},
		predictor: &mockPredictor{pred: tabular.Prediction{Prediction: "APPROVED", Probability: 0.82}},
		explainer: &mockExplainer{text: "## Explanation\nLooks fine."},
	}
	f.proc = NewProcessor(Deps{
		Store:     f.store,
		Analyzer:  f.analyzer,
		Keywords:  f.keywords,
		Retriever: f.retriever,
		Predictor: f.predictor,
		Explainer: f.explainer,
		Logger:    discardLogger(),
	})
	return f
}

func validInput() domain.ClaimInput {
	return domain.ClaimInput{
		Description: "Skidded on wet road, front bumper cracked",
		Insurer:     "Acko",
		Category:    "Two Wheeler",
	}
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture()
	f.retriever.result = domain.RetrievalResult{
		Primary:   []domain.Clause{{Text: "Own damage covered."}},
		Secondary: []domain.Clause{{Text: "Claim intimation within 48 hours."}},
	}

	result, err := f.proc.Process(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalDecision != domain.VerdictApproved {
		t.Errorf("verdict = %q", result.FinalDecision)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != "All checks passed" {
		t.Errorf("reasons = %v", result.Reasons)
	}
	if len(result.ClausesUsed) != 2 {
		t.Errorf("clauses = %d", len(result.ClausesUsed))
	}
	if result.Explanation != "## Explanation\nLooks fine." {
		t.Errorf("explanation = %q", result.Explanation)
	}

	p, ok := f.store.finalized[result.ClaimID]
	if !ok {
		t.Fatal("finalize not called")
	}
	if p.Decision.FinalDecision != domain.VerdictApproved {
		t.Errorf("persisted verdict = %q", p.Decision.FinalDecision)
	}
	// Model prediction is filled in for persistence.
	if p.Survey.Prediction == nil || *p.Survey.Prediction != "APPROVED" {
		t.Errorf("survey prediction = %v", p.Survey.Prediction)
	}
	if *p.Survey.Probability != 0.82 {
		t.Errorf("survey probability = %v", p.Survey.Probability)
	}
}

func TestProcessQueryCombinesDescriptionAndKeywords(t *testing.T) {
	f := newFixture()
	if _, err := f.proc.Process(context.Background(), validInput()); err != nil {
		t.Fatal(err)
	}
	want := "Skidded on wet road, front bumper cracked bumper"
	if f.retriever.query != want {
		t.Fatalf("query = %q", f.retriever.query)
	}
}

func TestProcessImageFailureDegrades(t *testing.T) {
	f := newFixture()
	f.analyzer.err = errors.New("detector unreachable")

	in := validInput()
	in.ImagePaths = []string{"/uploads/crash.jpg"}
	result, err := f.proc.Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	// Inconclusive findings never trip the image rule.
	if result.FinalDecision != domain.VerdictApproved {
		t.Errorf("verdict = %q", result.FinalDecision)
	}
	if result.ImageResult.DamageDetected {
		t.Error("expected inconclusive findings")
	}
	if result.Explanation == "" {
		t.Error("explanation missing")
	}
	if len(f.store.finalized) != 1 {
		t.Fatal("claim not persisted")
	}
}

func TestProcessImageRejectionOverridesCleanSurvey(t *testing.T) {
	f := newFixture()
	f.analyzer.findings = domain.ImageFindings{
		DamageDetected: true,
		Severity:       domain.SeverityMinor,
		Claimability:   domain.NotClaimable,
		ClaimReason:    "Only small scratches/dents detected",
	}

	in := validInput()
	in.ImagePaths = []string{"/uploads/scratch.jpg"}
	result, err := f.proc.Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalDecision != domain.VerdictRejected || result.RiskLevel != domain.RiskHigh {
		t.Errorf("verdict = %q risk = %q", result.FinalDecision, result.RiskLevel)
	}
	if result.Reasons[0] != "Only small scratches/dents detected" {
		t.Errorf("reasons = %v", result.Reasons)
	}
	// The explainer sees the findings.
	if f.explainer.req.Findings == nil || !f.explainer.req.Findings.DamageDetected {
		t.Error("explainer did not receive findings")
	}
}

func TestProcessNoImagesSkipsVisualBlock(t *testing.T) {
	f := newFixture()
	if _, err := f.proc.Process(context.Background(), validInput()); err != nil {
		t.Fatal(err)
	}
	if f.explainer.req.Findings != nil {
		t.Error("explainer received findings without images")
	}
	if f.analyzer.paths != nil {
		t.Error("analyzer called without images")
	}
}

func TestProcessKeywordFailureSearchesDescriptionOnly(t *testing.T) {
	f := newFixture()
	f.keywords.err = errors.New("llm down")

	if _, err := f.proc.Process(context.Background(), validInput()); err != nil {
		t.Fatal(err)
	}
	if f.retriever.query != validInput().Description {
		t.Fatalf("query = %q", f.retriever.query)
	}
}

func TestProcessRetrievalFailureDegrades(t *testing.T) {
	f := newFixture()
	f.retriever.err = errors.New("qdrant down")

	result, err := f.proc.Process(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ClausesUsed) != 0 {
		t.Errorf("clauses = %v", result.ClausesUsed)
	}
	if result.Explanation == "" {
		t.Error("explanation missing")
	}
}

func TestProcessTabularFailureSkipsPrediction(t *testing.T) {
	f := newFixture()
	f.predictor.err = errors.New("model server down")

	result, err := f.proc.Process(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	p := f.store.finalized[result.ClaimID]
	if p.Survey.Prediction != nil || p.Survey.Probability != nil {
		t.Errorf("survey = %+v", p.Survey)
	}
}

func TestProcessCallerPredictionNotOverwritten(t *testing.T) {
	f := newFixture()
	pred := "REJECTED"
	prob := 0.1

	in := validInput()
	in.Survey.Prediction = &pred
	in.Survey.Probability = &prob
	result, err := f.proc.Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	// Caller-supplied prediction drives the legacy rule and survives persist.
	if result.FinalDecision != domain.VerdictRejected {
		t.Errorf("verdict = %q", result.FinalDecision)
	}
	p := f.store.finalized[result.ClaimID]
	if *p.Survey.Prediction != "REJECTED" || *p.Survey.Probability != 0.1 {
		t.Errorf("survey = %+v", p.Survey)
	}
}

func TestProcessClausesCappedAtFive(t *testing.T) {
	f := newFixture()
	var primary []domain.Clause
	for i := 0; i < 4; i++ {
		primary = append(primary, domain.Clause{Text: "p"})
	}
	f.retriever.result = domain.RetrievalResult{
		Primary:   primary,
		Secondary: []domain.Clause{{Text: "s1"}, {Text: "s2"}},
	}

	result, err := f.proc.Process(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ClausesUsed) != 5 {
		t.Fatalf("clauses = %d", len(result.ClausesUsed))
	}
}

func TestProcessValidationFailureTouchesNothing(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Description = ""

	if _, err := f.proc.Process(context.Background(), in); err == nil {
		t.Fatal("expected validation error")
	}
	if len(f.store.created) != 0 || len(f.store.finalized) != 0 {
		t.Error("store touched on invalid input")
	}
}

func TestProcessFinalizeFailureMarksError(t *testing.T) {
	f := newFixture()
	f.store.finalizeErr = errors.New("disk full")

	_, err := f.proc.Process(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "finalize claim") {
		t.Errorf("err = %v", err)
	}
	if len(f.store.errored) != 1 {
		t.Fatalf("errored = %v", f.store.errored)
	}
}

func TestProcessReusesCallerClaimID(t *testing.T) {
	f := newFixture()
	id := int64(42)
	in := validInput()
	in.ClaimID = &id

	result, err := f.proc.Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if result.ClaimID != 42 {
		t.Fatalf("claim id = %d", result.ClaimID)
	}
	if len(f.store.created) != 0 {
		t.Error("new claim row created despite caller id")
	}
}
